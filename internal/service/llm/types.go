package llm

import (
	"context"
)

type Question struct {
	// System 系统指令, 为空时使用模型默认
	System  string
	Content string
	// JSON 要求模型直接输出 JSON
	JSON bool
}

type Answer struct {
	Content     string
	InputToken  int
	OutputToken int
}

type Service interface {
	AskOnce(ctx context.Context, q Question) (Answer, error)
}
