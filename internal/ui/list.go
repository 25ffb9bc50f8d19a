package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/shared"
)

var _ list.Item = transferItem{}

// transferItem wraps [models.Transfer] to implement [list.Item].
type transferItem struct {
	transfer models.Transfer
}

func (i transferItem) FilterValue() string { return i.transfer.Source }
func (i transferItem) Title() string {
	if i.transfer.Source == "" {
		return i.transfer.ID
	}
	return i.transfer.Source
}
func (i transferItem) Description() string {
	desc := fmt.Sprintf("%s • %.1f%% • %s", i.transfer.Status, i.transfer.Progress, shared.FormatBytes(i.transfer.BytesTransferred))
	if i.transfer.Destination != "" {
		desc = fmt.Sprintf("→ %s • %s", i.transfer.Destination, desc)
	}
	return desc
}

func transferItems(transfers []models.Transfer) []list.Item {
	items := make([]list.Item, len(transfers))
	for i, t := range transfers {
		items[i] = transferItem{transfer: t}
	}
	return items
}
