package categorize

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Exact matches a description equal to a category name.
type Exact struct{}

func (Exact) Name() string { return SourceExact }

func (Exact) Suggest(ctx context.Context, req Request) (*Result, error) {
	cat, ok := findByName(req.Categories, req.Description)
	if !ok {
		return nil, nil
	}
	return &Result{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Confidence:   0.9,
		AutoApply:    true,
		Source:       SourceExact,
	}, nil
}

// Substring matches a category whose name occurs inside the description.
// Categories are tried in the order given.
type Substring struct{}

func (Substring) Name() string { return SourceSubstring }

func (Substring) Suggest(ctx context.Context, req Request) (*Result, error) {
	desc := strings.ToLower(req.Description)
	for _, cat := range req.Categories {
		name := strings.ToLower(strings.TrimSpace(cat.Name))
		if name == "" || !strings.Contains(desc, name) {
			continue
		}
		return &Result{
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Confidence:   0.8,
			Source:       SourceSubstring,
		}, nil
	}
	return nil, nil
}

// KeywordGroup ties a base category name to words that indicate it.
type KeywordGroup struct {
	Base     string
	Keywords []string
}

// Keywords matches well-known words (shops, services, products) to one of
// the user's categories whose name resembles the group's base name.
type Keywords struct {
	Groups []KeywordGroup
}

// NewKeywords returns a Keywords strategy over DefaultKeywordGroups.
func NewKeywords() *Keywords {
	return &Keywords{Groups: DefaultKeywordGroups}
}

func (k *Keywords) Name() string { return SourceKeywords }

func (k *Keywords) Suggest(ctx context.Context, req Request) (*Result, error) {
	desc := strings.ToLower(strings.TrimSpace(req.Description))
	tokens := tokenSet(desc)

	for _, g := range k.Groups {
		cat, ok := resembling(req.Categories, g.Base)
		if !ok {
			continue
		}
		for _, kw := range g.Keywords {
			if !containsKeyword(desc, tokens, kw) {
				continue
			}
			return &Result{
				CategoryID:   cat.ID,
				CategoryName: cat.Name,
				Confidence:   0.7,
				Source:       SourceKeywords,
			}, nil
		}
	}
	return nil, nil
}

// resembling finds a category whose lowered name contains base or is
// contained in it.
func resembling(categories []Category, base string) (Category, bool) {
	base = strings.ToLower(base)
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			continue
		}
		if strings.Contains(name, base) || strings.Contains(base, name) {
			return c, true
		}
	}
	return Category{}, false
}

// shortKeyword is the rune length below which a keyword must match a whole
// word rather than any substring ("dm", "tv", "газ").
const shortKeyword = 4

func containsKeyword(desc string, tokens map[string]bool, kw string) bool {
	if utf8.RuneCountInString(kw) < shortKeyword {
		return tokens[kw]
	}
	return strings.Contains(desc, kw)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	}) {
		set[tok] = true
	}
	return set
}

// DefaultKeywordGroups is the built-in vocabulary, checked in order.
var DefaultKeywordGroups = []KeywordGroup{
	{Base: "продукты", Keywords: []string{
		"продукты", "еда", "пища", "супермаркет", "магазин", "food", "grocery",
		"auchan", "silpo", "atb", "novus", "сільпо", "ашан", "новус", "хлеб",
		"молоко", "мясо", "овощи", "фрукты", "lidl", "metro", "kaufland", "billa",
		"spar", "rewe", "edeka", "penny", "netto", "dm", "rossmann",
	}},
	{Base: "транспорт", Keywords: []string{
		"транспорт", "автобус", "такси", "uber", "bolt", "taxi", "бензин", "газ",
		"заправка", "fuel", "petrol", "gas", "parking", "парковка", "метро", "поезд",
		"train", "билет", "ticket", "проезд", "toll", "платная дорога", "автомобиль",
		"car", "машина", "авто", "transport", "bus", "tram", "трамвай", "троллейбус",
		"trolleybus",
	}},
	{Base: "развлечения", Keywords: []string{
		"развлечения", "кино", "cinema", "театр", "theatre", "концерт", "concert",
		"игры", "games", "спорт", "sport", "фитнес", "fitness", "gym", "бассейн",
		"pool", "музей", "museum", "выставка", "exhibition", "клуб", "club",
		"entertainment", "leisure", "досуг", "отдых", "vacation", "отпуск", "туризм",
		"tourism", "путешествие", "travel", "hotel", "отель", "hostel", "хостел",
	}},
	{Base: "здоровье", Keywords: []string{
		"здоровье", "аптека", "pharmacy", "лекарство", "medicine", "врач", "doctor",
		"больница", "hospital", "поликлиника", "clinic", "медицина", "medical",
		"лечение", "treatment", "анализы", "стоматолог", "dentist", "зубы", "teeth",
		"окулист", "оптика", "optics", "glasses", "очки", "витамины", "vitamins",
		"массаж", "massage", "physio", "терапия", "therapy", "health", "медосмотр",
		"checkup",
	}},
	{Base: "одежда", Keywords: []string{
		"одежда", "clothes", "clothing", "fashion", "обувь", "shoes", "boots",
		"сапоги", "кроссовки", "sneakers", "платье", "dress", "рубашка", "shirt",
		"брюки", "pants", "джинсы", "jeans", "куртка", "jacket", "пальто", "coat",
		"шапка", "шарф", "scarf", "перчатки", "gloves", "носки", "socks", "h&m",
		"zara", "mango", "bershka", "pull&bear", "massimo dutti", "stradivarius",
		"reserved", "c&a", "primark", "uniqlo", "nike", "adidas", "puma", "reebok",
	}},
	{Base: "коммунальные услуги", Keywords: []string{
		"коммунальные", "utilities", "электричество", "electricity", "вода", "water",
		"отопление", "heating", "интернет", "internet", "телефон", "phone",
		"мобильная связь", "mobile", "kyivstar", "vodafone", "lifecell", "телеком",
		"telecom", "кабельное", "cable", "tv", "телевидение", "television",
		"домофон", "intercom", "жкх", "housing", "коммуналка", "счетчики", "meters",
		"квартплата", "rent", "аренда",
	}},
	{Base: "ресторан", Keywords: []string{
		"ресторан", "restaurant", "кафе", "cafe", "coffee", "кофе", "starbucks",
		"mcdonalds", "kfc", "burger", "бургер", "pizza", "пицца", "sushi", "суши",
		"delivery", "доставка", "glovo", "uber eats", "wolt", "завтрак", "breakfast",
		"обед", "lunch", "ужин", "dinner", "столовая", "canteen", "фастфуд",
		"takeaway", "бар", "bar", "pub", "паб", "пиво", "beer", "вино", "wine",
		"коктейль", "cocktail", "чай", "tea", "сок", "juice",
	}},
	{Base: "прочее", Keywords: []string{
		"прочее", "other", "разное", "misc", "miscellaneous", "другое", "general",
	}},
}
