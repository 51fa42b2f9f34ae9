package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
)

// NodeBuilder 根据节点配置构建后处理 Node。
type NodeBuilder = pipeline.NodeBuilder

// 后处理节点目录：内置节点在 builders.go 的 init 中登记，
// 扩展节点调用 Register 后即可出现在配置文件里。
var (
	catalogMu sync.RWMutex
	catalog   = make(map[string]NodeBuilder)
)

// Register 登记（或覆盖）一种后处理节点。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	catalogMu.Lock()
	catalog[typeName] = builder
	catalogMu.Unlock()
}

// SupportedTypes 返回已登记的节点类型，按字典序。
func SupportedTypes() []string {
	return newFactory(nil).Types()
}

// newFactory 复制当前目录；blacklist 非 nil 时 filter 节点的黑名单从该存储读取。
func newFactory(blacklist core.Store) *pipeline.NodeFactory {
	f := pipeline.NewNodeFactory()
	catalogMu.RLock()
	for typeName, builder := range catalog {
		f.Register(typeName, builder)
	}
	catalogMu.RUnlock()
	if blacklist != nil {
		f.Register("filter", FilterNodeBuilder(blacklist))
	}
	return f
}

// ValidatePipelineConfig 不连接存储地试构建一遍后处理链，
// 未登记的类型与非法的节点参数（例如写错的 CEL 表达式）一并报出。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	f := newFactory(nil)
	var errs []error
	for i, nc := range cfg.Pipeline.Nodes {
		if _, err := f.Build(nc.Type, nc.Config); err != nil {
			errs = append(errs, fmt.Errorf("post_process #%d (%s): %w", i, nc.Type, err))
		}
	}
	return errors.Join(errs...)
}

// BuildPostProcess 按配置构建后处理 Pipeline；blacklist 为黑名单存储，可为 nil。
func (c *Config) BuildPostProcess(blacklist core.Store) (*pipeline.Pipeline, error) {
	pc, err := c.PostProcessConfig()
	if err != nil {
		return nil, err
	}
	if err := ValidatePipelineConfig(pc); err != nil {
		return nil, err
	}
	return pc.BuildPipeline(newFactory(blacklist))
}
