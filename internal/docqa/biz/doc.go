// Package biz 提供文档问答服务的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - Indexer: 负责文档索引（上传/下载、解析、分块、嵌入）
//   - Retriever: 负责检索（向量搜索、Top-K 排序）
//   - Generator: 负责生成（上下文构建、LLM 回答生成）
//   - Service: 组合以上组件，提供统一的服务接口，
//     包括一次性完成下载、索引与批量问答的 AnswerDocument 流程
package biz
