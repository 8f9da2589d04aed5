package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

// Receipt is what the model read off a receipt photo. Fields the model could
// not determine are nil or empty.
type Receipt struct {
	Currency    string           `json:"currency"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	StoreName   string           `json:"store_name"`
	Date        *string          `json:"date"`
	Items       []ReceiptItem    `json:"items"`
}

// ReceiptItem is one purchased line.
type ReceiptItem struct {
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *float64         `json:"quantity"`
	Category string           `json:"category"`
}

// Total returns the receipt total, or the sum of item prices times
// quantities when the total is missing. ok is false when neither yields a
// positive amount.
func (r *Receipt) Total() (decimal.Decimal, bool) {
	if r.TotalAmount != nil && r.TotalAmount.IsPositive() {
		return *r.TotalAmount, true
	}

	sum := decimal.Zero
	for _, it := range r.Items {
		if it.Price == nil {
			continue
		}
		qty := decimal.NewFromInt(1)
		if it.Quantity != nil && *it.Quantity > 0 {
			qty = decimal.NewFromFloat(*it.Quantity)
		}
		sum = sum.Add(it.Price.Mul(qty))
	}
	if !sum.IsPositive() {
		return decimal.Zero, false
	}
	return sum.Round(2), true
}

// ParsedDate returns the receipt date, if the model found a valid one.
func (r *Receipt) ParsedDate() (time.Time, bool) {
	if r.Date == nil {
		return time.Time{}, false
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(*r.Date))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

const receiptPrompt = "Проанализируй этот чек и извлеки все покупки.\n" +
	"Верни результат в формате JSON:\n" +
	"{\n" +
	"  \"currency\": \"валюта (например, EUR, USD)\",\n" +
	"  \"total_amount\": общая_сумма,\n" +
	"  \"store_name\": \"название_магазина\",\n" +
	"  \"date\": \"дата в формате YYYY-MM-DD\",\n" +
	"  \"items\": [\n" +
	"    {\"name\": \"название_товара\", \"price\": цена, \"quantity\": количество, \"category\": \"предполагаемая_категория\"}\n" +
	"  ]\n" +
	"}\n\n" +
	"Если не удается определить какое-либо поле, укажи null.\n" +
	"Категории: Продукты, Транспорт, Развлечения, Здоровье, Одежда, Коммунальные услуги, Ресторан, Прочее.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// AnalyzeReceipt sends a receipt photo to the model and decodes its answer.
func (c *Client) AnalyzeReceipt(ctx context.Context, image []byte, mimeType string) (*Receipt, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("AnalyzeReceipt: empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	}

	rawText, err := c.generate(ctx, "AnalyzeReceipt", config,
		&genai.Part{Text: receiptPrompt},
		&genai.Part{
			InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     image,
			},
		},
	)
	if err != nil {
		return nil, err
	}

	return decodeReceipt(rawText)
}

func decodeReceipt(rawText string) (*Receipt, error) {
	clean := cleanModelJSON(rawText)

	var r Receipt
	if err := json.Unmarshal([]byte(clean), &r); err != nil {
		return nil, fmt.Errorf("AnalyzeReceipt: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	return &r, nil
}

// DefaultStoreName is used when the model could not read the store name.
const DefaultStoreName = "Магазин"

// ReceiptTransactions turns a receipt into one expense for its total,
// described as "<store> (чек)". Unknown currencies fall back to
// defaultCurrency. A receipt without a usable amount yields nothing.
func ReceiptTransactions(r *Receipt, table *txparse.CurrencyTable, defaultCurrency string) []*domain.Transaction {
	if r == nil {
		return nil
	}
	total, ok := r.Total()
	if !ok {
		return nil
	}

	store := strings.TrimSpace(r.StoreName)
	if store == "" {
		store = DefaultStoreName
	}

	tx := &domain.Transaction{
		Amount:      total,
		Currency:    table.Normalize(r.Currency, defaultCurrency),
		Description: store + " (чек)",
		Source:      domain.SourceReceipt,
	}
	if d, ok := r.ParsedDate(); ok {
		tx.Date = d
	}
	return []*domain.Transaction{tx}
}
