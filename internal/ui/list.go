package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/multiverse/internal/models"
)

var _ list.Item = themeItem{}

// themeItem wraps [models.AlbumTheme] to implement [list.Item].
type themeItem struct {
	theme models.AlbumTheme
}

func (i themeItem) FilterValue() string { return i.theme.Name }
func (i themeItem) Title() string       { return i.theme.Name }
func (i themeItem) Description() string { return i.theme.ThemeID }

func themeItems(themes []models.AlbumTheme) []list.Item {
	items := make([]list.Item, len(themes))
	for i, t := range themes {
		items[i] = themeItem{theme: t}
	}
	return items
}
