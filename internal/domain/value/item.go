package value

import "github.com/samber/lo"

// Item описывает предмет инвентаря, предложенный в залог.
type Item struct {
	AssetID        string `json:"asset_id"`
	MarketHashName string `json:"market_hash_name"`
	Rarity         string `json:"rarity,omitempty"`
}

// Items набор предметов одной сделки.
type Items []Item

// Names возвращает уникальные market_hash_name в порядке первого появления.
func (it Items) Names() []string {
	return lo.Uniq(lo.Map(it, func(i Item, _ int) string { return i.MarketHashName }))
}

// AssetIDs возвращает идентификаторы ассетов.
func (it Items) AssetIDs() []string {
	return lo.Map(it, func(i Item, _ int) string { return i.AssetID })
}

// SameAssets сравнивает наборы ассетов как мультимножества.
func (it Items) SameAssets(other Items) bool {
	if len(it) != len(other) {
		return false
	}

	counts := lo.CountValues(it.AssetIDs())
	for _, id := range other.AssetIDs() {
		if counts[id] == 0 {
			return false
		}
		counts[id]--
	}

	return true
}
