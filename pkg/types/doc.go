// Package types 定义 roco 执行核心共享的数据结构：任务描述、主机规格、
// 运行元数据以及事件。
package types
