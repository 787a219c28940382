// Package prompt turns a question and a drawn spread into the single user
// message sent to the chat-completions endpoint.
package prompt

import (
	"fmt"
	"strings"

	"github.com/J-York/TarotWhisper/internal/domain"
)

const interpretationTemplate = `你是一位经验丰富的塔罗牌解读师，拥有深厚的神秘学知识和敏锐的直觉。请为以下塔罗牌占卜提供专业、深入且富有洞察力的解读。

## 问卜者的问题
%s

## 使用的牌阵
%s（%s）
%s

## 抽到的牌
%s

## 解读要求
1. 首先简要概述整体牌面的能量和主题
2. 逐一解读每张牌在其位置上的含义，并结合问卜者的问题
3. 分析牌与牌之间的关联和互动
4. 给出综合性的建议和指引
5. 语气要温和、富有同理心，但也要诚实直接
6. 使用中文回答，可以适当使用一些神秘学术语

请开始你的解读：`

// BuildInterpretation renders the full spread prompt. drawn must line up
// one-to-one with spread.Positions.
func BuildInterpretation(question string, spread domain.Spread, drawn []domain.DrawnCard) (string, error) {
	if len(drawn) != len(spread.Positions) {
		return "", fmt.Errorf("%w: %d cards for %d positions", domain.ErrCardCountMismatch, len(drawn), len(spread.Positions))
	}

	blocks := make([]string, len(drawn))
	for i, d := range drawn {
		o := d.Orientation()
		blocks[i] = fmt.Sprintf("【%s】%s（%s）\n- 关键词：%s\n- 含义：%s",
			spread.Positions[i].NameCn,
			d.Card.NameCn,
			o.Label(),
			strings.Join(d.Card.KeywordsFor(o), "、"),
			d.Card.MeaningFor(o),
		)
	}

	return fmt.Sprintf(interpretationTemplate,
		question,
		spread.NameCn, spread.Name,
		spread.Description,
		strings.Join(blocks, "\n\n"),
	), nil
}
