// Package store 提供 core.Store / core.KeyValueStore 的实现（内存、Redis），
// 以及构建在其上的推荐结果仓库与快照协作方。
//
// 注意：接口定义在 core 包。
//
// 示例：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	repo := store.NewRecommendationRepo(kv)
package store
