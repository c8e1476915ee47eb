package client

// RecipeSummary is a search result as returned by complex search.
type RecipeSummary struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Image     string     `json:"image,omitempty"`
	ImageType string     `json:"imageType,omitempty"`
	Nutrition *Nutrition `json:"nutrition,omitempty"`
}

// Nutrition holds the nutrients the API attaches to filtered searches
// (e.g. maxCalories).
type Nutrition struct {
	Nutrients []Nutrient `json:"nutrients"`
}

// Nutrient is a single nutrient amount.
type Nutrient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Recipe is the full recipe information.
type Recipe struct {
	ID                  int          `json:"id"`
	Title               string       `json:"title"`
	Image               string       `json:"image,omitempty"`
	Servings            int          `json:"servings,omitempty"`
	ReadyInMinutes      int          `json:"readyInMinutes,omitempty"`
	SourceURL           string       `json:"sourceUrl,omitempty"`
	Summary             string       `json:"summary,omitempty"`
	Instructions        string       `json:"instructions,omitempty"`
	HealthScore         float64      `json:"healthScore,omitempty"`
	Vegetarian          bool         `json:"vegetarian"`
	Vegan               bool         `json:"vegan"`
	GlutenFree          bool         `json:"glutenFree"`
	Cuisines            []string     `json:"cuisines,omitempty"`
	DishTypes           []string     `json:"dishTypes,omitempty"`
	ExtendedIngredients []Ingredient `json:"extendedIngredients,omitempty"`
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Original string  `json:"original,omitempty"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
}

type searchResponse struct {
	Results      []RecipeSummary `json:"results"`
	TotalResults int             `json:"totalResults"`
}

type randomResponse struct {
	Recipes []Recipe `json:"recipes"`
}
