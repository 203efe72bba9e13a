package notionexport

import (
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/aggregate"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2006.01.02",
	"20060102",
}

// ExportKey is the stable identity of one line item across export runs. It
// is derived from the owning record's bill hash rather than the session
// entry id, which is minted fresh on every snapshot restore.
func ExportKey(array string, item aggregate.Item) string {
	return fmt.Sprintf("%s/%s[%d]", item.BillHash, array, item.Key.Index)
}

// ItemToProperties converts one ledger line item to Notion page properties.
// The Item Key property carries the item's export key and is used for
// idempotent re-export.
func ItemToProperties(period, institution, array string, item aggregate.Item) notionapi.Properties {
	title := item.Description
	if title == "" {
		title = "(no description)"
	}

	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: title},
				},
			},
		},
		"Item Key": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: ExportKey(array, item)},
				},
			},
		},
		"Period": notionapi.SelectProperty{
			Select: notionapi.Option{Name: period},
		},
		"Institution": notionapi.SelectProperty{
			Select: notionapi.Option{Name: institution},
		},
		"Table": notionapi.SelectProperty{
			Select: notionapi.Option{Name: array},
		},
	}

	if item.Amount != nil {
		props["Amount"] = notionapi.NumberProperty{Number: *item.Amount}
	}

	if item.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: item.Category},
		}
	}

	if d, ok := parseItemDate(item.Date); ok {
		nd := notionapi.Date(d)
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &nd},
		}
	}

	if item.ForeignAmount != nil {
		props["Foreign Amount"] = notionapi.NumberProperty{Number: *item.ForeignAmount}
	}
	if item.ForeignCurrency != "" {
		props["Foreign Currency"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: item.ForeignCurrency},
		}
	}

	return props
}

func parseItemDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractItemKey reads the Item Key property back from an existing page.
func extractItemKey(page notionapi.Page) string {
	prop, ok := page.Properties["Item Key"]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	return rt.RichText[0].PlainText
}
