package recipes

import "strconv"

// Cache keys. Lists and single recipes use distinct prefixes
// ("recipes_" and "recipe_") so no two fetchers share a key.
const (
	PopularKey = "popular_recipes"
	HealthyKey = "healthy_recipes"
)

// CategoryKey returns the cache key of a category list. The category is
// used as given, so "Dessert" and "dessert" are cached separately; callers
// trim it first.
func CategoryKey(category string) string {
	return "recipes_" + category
}

// RecipeKey returns the cache key of a single recipe.
func RecipeKey(id int) string {
	return "recipe_" + strconv.Itoa(id)
}
