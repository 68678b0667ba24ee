// Package biz 提供 DocMind 服务的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - Chunker: 负责句子感知的文本分块（token 预算 + 重叠窗口）
//   - Indexer: 负责文档索引（提取、分块、嵌入、存储）
//   - Retriever: 负责检索（向量搜索、相似度换算、阈值过滤）
//   - Reranker: 负责检索结果重排（来源多样性交错）
//   - Generator: 负责生成（上下文构建、LLM 回答生成）
//   - CitationResolver: 负责引用提取、校验与溯源映射
//   - Service: 组合以上组件，提供统一的服务接口
package biz
