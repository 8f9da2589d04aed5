package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/budget-bot/internal/domain"
)

// Property names of the transactions database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropCurrency      = "Currency"
	PropType          = "Type"
	PropCategory      = "Category"
	PropSource        = "Source"
	PropUser          = "User"
)

// Values of the Type select.
const (
	TypeIncome  = "Доход"
	TypeExpense = "Расход"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// TransactionToNotionProperties converts a transaction to page properties.
// Amount is signed: expenses are negative. An empty categoryName leaves the
// Category select unset.
func TransactionToNotionProperties(tx *domain.Transaction, categoryName string) notionapi.Properties {
	date := notionapi.Date(tx.Date)
	kind := TypeExpense
	if tx.IsIncome {
		kind = TypeIncome
	}

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: tx.SignedAmount().InexactFloat64(),
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: kind},
		},
	}

	if tx.Currency != "" {
		props[PropCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Currency},
		}
	}
	if categoryName != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: categoryName},
		}
	}
	if tx.Source != "" {
		props[PropSource] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Source},
		}
	}
	if tx.UserID != "" {
		props[PropUser] = notionapi.RichTextProperty{
			RichText: richText(tx.UserID),
		}
	}

	return props
}

// extractTransactionID returns the Transaction ID of a page, or "".
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
