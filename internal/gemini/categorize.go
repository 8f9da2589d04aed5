package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const categorizeSystemPrompt = "Ты помощник для категоризации транзакций. Отвечай только названием категории."

func categorizePrompt(description string, categoryNames []string) string {
	return fmt.Sprintf(
		"Определи наиболее подходящую категорию для транзакции: %q\n\n"+
			"Доступные категории: %s\n\n"+
			"Верни только название категории из списка доступных категорий.\n"+
			"Если ни одна не подходит, верни \"Прочее\".\n",
		description, strings.Join(categoryNames, ", "))
}

// CategorizeTransaction asks the model which of categoryNames fits the
// description. The answer is returned as given; callers check it against
// the list.
func (c *Client) CategorizeTransaction(ctx context.Context, description string, categoryNames []string) (string, error) {
	if len(categoryNames) == 0 {
		return "", fmt.Errorf("CategorizeTransaction: no categories to choose from")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: 50,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: categorizeSystemPrompt}},
		},
	}

	answer, err := c.generate(ctx, "CategorizeTransaction", config, &genai.Part{Text: categorizePrompt(description, categoryNames)})
	if err != nil {
		return "", err
	}

	// first line only; models sometimes add an explanation
	if idx := strings.IndexByte(answer, '\n'); idx != -1 {
		answer = answer[:idx]
	}
	return strings.TrimSpace(answer), nil
}
