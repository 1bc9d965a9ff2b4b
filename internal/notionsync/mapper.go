package notionsync

import (
	"strings"

	"github.com/jomei/notionapi"

	"github.com/avlasov/spendlens/internal/analytics"
)

// IdleFindingToProperties converts an idle-resource finding to the Notion
// properties of one findings-board page. The Resource ID title is the upsert
// key and is always present; context columns the dataset had nothing for are
// omitted so the board shows empty cells instead of blank text blocks.
func IdleFindingToProperties(f analytics.IdleFinding) notionapi.Properties {
	props := notionapi.Properties{
		"Resource ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: f.ResourceID,
					},
				},
			},
		},
		"Estimated Monthly Saving": notionapi.NumberProperty{
			Number: f.EstimatedMonthlySaving,
		},
		"Prior Months Avg": notionapi.NumberProperty{
			Number: f.PriorMonthsAvg,
		},
		"Zero Months": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: strings.Join(f.LastMonthsZero, ", "),
					},
				},
			},
		},
	}

	// Owner
	if f.Owner != "" {
		props["Owner"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: f.Owner,
					},
				},
			},
		}
	}

	// Env
	if f.Env != "" {
		props["Env"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: f.Env,
			},
		}
	}

	// Tags
	if f.Tags != "" {
		props["Tags"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: f.Tags,
					},
				},
			},
		}
	}

	return props
}

// extractResourceID extracts the resource ID from a Notion page's title.
// Returns empty string if not found.
func extractResourceID(page notionapi.Page) string {
	if prop, ok := page.Properties["Resource ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
