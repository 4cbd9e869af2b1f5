package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
	"vulkan-renderer/unsafer"
)

func (d *Device) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(info.Filter),
		MinFilter:               vk.Filter(info.Filter),
		AddressModeU:            vk.SamplerAddressMode(info.Address),
		AddressModeV:            vk.SamplerAddressMode(info.Address),
		AddressModeW:            vk.SamplerAddressMode(info.Address),
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  0,
	}

	var s vk.Sampler
	if err := check(vk.CreateSampler(d.device, &samplerInfo, nil, &s), "vkCreateSampler"); err != nil {
		return nil, err
	}
	return &sampler{handleOf(unsafe.Pointer(s)), s}, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	vk.DestroySampler(d.device, samplerOf(s), nil)
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Newf("shader bytecode size %d is not a multiple of four", len(code))
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    unsafer.SliceBytesToUint32(code),
	}

	var m vk.ShaderModule
	if err := check(vk.CreateShaderModule(d.device, &createInfo, nil, &m), "vkCreateShaderModule"); err != nil {
		return nil, err
	}
	return &shaderModule{handleOf(unsafe.Pointer(m)), m}, nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	vk.DestroyShaderModule(d.device, shaderModuleOf(m), nil)
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:            b.Binding,
			DescriptorType:     vk.DescriptorType(b.Type),
			DescriptorCount:    1,
			StageFlags:         vk.ShaderStageFlags(b.Stages),
			PImmutableSamplers: nil,
		}
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}

	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(d.device, &layoutInfo, nil, &layout)
	if err := check(res, "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	return &descriptorSetLayout{handleOf(unsafe.Pointer(layout)), layout}, nil
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.device, descriptorSetLayoutOf(l), nil)
}

func (d *Device) CreateDescriptorPool(info gpu.DescriptorPoolInfo) (gpu.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: max(info.CombinedImageSamplers, 1),
	}}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       info.MaxSets,
	}

	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(d.device, &poolInfo, nil, &pool), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	return &descriptorPool{handleOf(unsafe.Pointer(pool)), pool}, nil
}

func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	vk.DestroyDescriptorPool(d.device, p.(*descriptorPool).h, nil)
}

func (d *Device) AllocateDescriptorSet(p gpu.DescriptorPool, l gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.(*descriptorPool).h,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{descriptorSetLayoutOf(l)},
	}

	var set vk.DescriptorSet
	if err := check(vk.AllocateDescriptorSets(d.device, &allocInfo, &set), "vkAllocateDescriptorSets"); err != nil {
		return nil, err
	}
	return &descriptorSet{handleOf(unsafe.Pointer(set)), set}, nil
}

func (d *Device) FreeDescriptorSet(p gpu.DescriptorPool, s gpu.DescriptorSet) {
	set := descriptorSetOf(s)
	vk.FreeDescriptorSets(d.device, p.(*descriptorPool).h, 1, &set)
}

func (d *Device) WriteImageDescriptor(s gpu.DescriptorSet, write gpu.ImageDescriptor) {
	imageInfo := vk.DescriptorImageInfo{
		ImageLayout: vk.ImageLayout(write.Layout),
		ImageView:   imageViewOf(write.View),
		Sampler:     samplerOf(write.Sampler),
	}

	descriptorWrites := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          descriptorSetOf(s),
		DstBinding:      write.Binding,
		DstArrayElement: 0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}}

	vk.UpdateDescriptorSets(d.device, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)
}

func (d *Device) CreatePipelineLayout(info gpu.PipelineLayoutInfo) (gpu.PipelineLayout, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(info.SetLayouts))
	for i, l := range info.SetLayouts {
		setLayouts[i] = descriptorSetLayoutOf(l)
	}

	ranges := make([]vk.PushConstantRange, len(info.PushConstants))
	for i, r := range info.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}

	var layout vk.PipelineLayout
	res := vk.CreatePipelineLayout(d.device, &pipelineLayoutInfo, nil, &layout)
	if err := check(res, "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}
	return &pipelineLayout{handleOf(unsafe.Pointer(layout)), layout}, nil
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) {
	vk.DestroyPipelineLayout(d.device, pipelineLayoutOf(l), nil)
}

// CreateGraphicsPipeline builds a pipeline for dynamic rendering: no render pass,
// attachment formats chained in, no vertex input and dynamic viewport and scissor.
func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: shaderModuleOf(info.Vertex),
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: shaderModuleOf(info.Fragment),
			PName:  "main\x00",
		},
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Viewport and scissor are dynamic; only their count matters here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
		PViewports:    []vk.Viewport{{Width: 1, Height: 1, MaxDepth: 1}},
		PScissors:     []vk.Rect2D{{Extent: vk.Extent2D{Width: 1, Height: 1}}},
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit |
				vk.ColorComponentGBit |
				vk.ColorComponentBBit |
				vk.ColorComponentABit,
		),
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
	}
	if info.AlphaBlend {
		colorBlendAttachment.BlendEnable = vk.True
		colorBlendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	}

	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{
			colorBlendAttachment,
		},
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(info.DepthTest),
		DepthWriteEnable:      vkBool(info.DepthWrite),
		DepthCompareOp:        vk.CompareOp(info.DepthCompare),
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
		StencilTestEnable:     vk.False,
	}

	formats := newRenderingFormats(info.ColorFormat, info.DepthFormat)
	defer freeC(formats)

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               formats,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              pipelineLayoutOf(info.Layout),
		RenderPass:          vk.NullRenderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.Pipeline(vk.NullHandle),
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(
		d.device,
		vk.PipelineCache(vk.NullHandle),
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo},
		nil,
		pipelines,
	)
	if err := check(res, "vkCreateGraphicsPipelines"); err != nil {
		return nil, err
	}
	return &pipeline{handleOf(unsafe.Pointer(pipelines[0])), pipelines[0]}, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	vk.DestroyPipeline(d.device, p.(*pipeline).h, nil)
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
