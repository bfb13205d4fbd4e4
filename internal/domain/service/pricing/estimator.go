package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/value"
)

type multiplier struct {
	pattern string
	factor  string
}

// Базовые цены оружия, руб.
var weaponBasePrices = map[string]int64{ //nolint:gochecknoglobals
	"AK-47": 500, "M4A4": 400, "M4A1-S": 400, "AWP": 600, "SSG 08": 150,
	"SCAR-20": 200, "G3SG1": 180, "Galil AR": 120, "FAMAS": 120, "AUG": 150, "SG 553": 150,

	"Desert Eagle": 250, "USP-S": 200, "P2000": 80, "Glock-18": 150, "P250": 100,
	"Five-SeveN": 120, "Tec-9": 100, "CZ75-Auto": 150, "Dual Berettas": 80, "R8 Revolver": 120,

	"MP9": 80, "MAC-10": 70, "MP7": 100, "MP5-SD": 120, "UMP-45": 90, "P90": 150, "PP-Bizon": 80,

	"Nova": 70, "XM1014": 100, "Sawed-Off": 80, "MAG-7": 90,

	"M249": 120, "Negev": 100,
}

var knifeBasePrices = []multiplier{ //nolint:gochecknoglobals
	{"Butterfly Knife", "45000"},
	{"Huntsman Knife", "32000"},
	{"Paracord Knife", "33000"},
	{"Skeleton Knife", "38000"},
	{"Stiletto Knife", "35000"},
	{"Survival Knife", "34000"},
	{"Falchion Knife", "28000"},
	{"Classic Knife", "42000"},
	{"Navaja Knife", "25000"},
	{"Bowie Knife", "30000"},
	{"Nomad Knife", "35000"},
	{"Talon Knife", "40000"},
	{"Ursus Knife", "32000"},
	{"Flip Knife", "30000"},
	{"Gut Knife", "25000"},
}

var rarityMultipliers = map[string]string{ //nolint:gochecknoglobals
	"Contraband":       "100",
	"Covert":           "8",
	"Classified":       "3",
	"Restricted":       "1.5",
	"Mil-Spec Grade":   "0.8",
	"Mil-Spec":         "0.8",
	"Industrial Grade": "0.3",
	"Consumer Grade":   "0.15",
}

var wearMultipliers = []multiplier{ //nolint:gochecknoglobals
	{"Factory New", "1.5"},
	{"Minimal Wear", "1.2"},
	{"Field-Tested", "1"},
	{"Well-Worn", "0.7"},
	{"Battle-Scarred", "0.5"},
}

// Первое совпадение выигрывает: "Marble Fade" проверяется раньше "Fade".
var collectionMultipliers = []multiplier{ //nolint:gochecknoglobals
	{"Gamma Doppler", "2"},
	{"Kill Confirmed", "1.6"},
	{"Case Hardened", "1.5"},
	{"Fire Serpent", "3"},
	{"Marble Fade", "2.2"},
	{"Crimson Web", "1.7"},
	{"Dragon Lore", "80"},
	{"Tiger Tooth", "1.6"},
	{"Hyper Beast", "1.4"},
	{"Printstream", "1.6"},
	{"Autotronic", "1.5"},
	{"Bloodsport", "1.4"},
	{"The Prince", "40"},
	{"Wild Lotus", "35"},
	{"Neo-Noir", "1.4"},
	{"Asiimov", "1.5"},
	{"Redline", "1.3"},
	{"Doppler", "1.8"},
	{"Gungnir", "60"},
	{"Medusa", "50"},
	{"Vulcan", "1.5"},
	{"Blaze", "1.8"},
	{"Fade", "2"},
	{"Howl", "100"},
}

//nolint:gochecknoglobals
var (
	defaultWeaponPrice = decimal.NewFromInt(150)
	unnamedItemPrice   = decimal.NewFromInt(100)
	weaponMinPrice     = decimal.NewFromInt(50)
	knifeBasePrice     = decimal.NewFromInt(30000)
	knifeMinPrice      = decimal.NewFromInt(20000)
	vanillaKnifeFactor = decimal.RequireFromString("0.7")
	glovesBasePrice    = decimal.NewFromInt(30000)
	glovesMinPrice     = decimal.NewFromInt(15000)
)

// Estimator оценивает предмет по названию и редкости без сетевых вызовов.
// Результат детерминирован и используется, когда рыночной цены нет.
type Estimator struct{}

func NewEstimator() Estimator {
	return Estimator{}
}

func (e Estimator) Estimate(item value.Item) decimal.Decimal {
	name := item.MarketHashName

	switch {
	case strings.Contains(name, "★") || strings.Contains(name, "Knife"):
		return e.knife(name)
	case strings.Contains(name, "Gloves") || strings.Contains(name, "Wraps"):
		return e.gloves(name)
	default:
		return e.weapon(name, item.Rarity)
	}
}

func (e Estimator) weapon(name, rarity string) decimal.Decimal {
	weapon, skin, ok := strings.Cut(name, "|")
	if !ok {
		return unnamedItemPrice
	}

	base := defaultWeaponPrice
	if p, found := weaponBasePrices[strings.TrimSpace(weapon)]; found {
		base = decimal.NewFromInt(p)
	}

	rarityFactor := decimal.NewFromInt(1)
	if f, found := rarityMultipliers[rarity]; found {
		rarityFactor = decimal.RequireFromString(f)
	}

	price := base.
		Mul(rarityFactor).
		Mul(firstMatch(wearMultipliers, skin)).
		Mul(firstMatch(collectionMultipliers, skin))

	return decimal.Max(weaponMinPrice, value.RoundMoney(price))
}

func (e Estimator) knife(name string) decimal.Decimal {
	base := knifeBasePrice
	for _, k := range knifeBasePrices {
		if strings.Contains(name, k.pattern) {
			base = decimal.RequireFromString(k.factor)
			break
		}
	}

	skinFactor := firstMatch(collectionMultipliers, name)
	if strings.Contains(name, "Vanilla") || !strings.Contains(name, "|") {
		skinFactor = vanillaKnifeFactor
	}

	price := base.Mul(skinFactor).Mul(firstMatch(wearMultipliers, name))

	return decimal.Max(knifeMinPrice, value.RoundMoney(price))
}

func (e Estimator) gloves(name string) decimal.Decimal {
	price := glovesBasePrice.
		Mul(firstMatch(collectionMultipliers, name)).
		Mul(firstMatch(wearMultipliers, name))

	return decimal.Max(glovesMinPrice, value.RoundMoney(price))
}

func firstMatch(table []multiplier, s string) decimal.Decimal {
	for _, m := range table {
		if strings.Contains(s, m.pattern) {
			return decimal.RequireFromString(m.factor)
		}
	}
	return decimal.NewFromInt(1)
}
