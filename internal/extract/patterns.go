package extract

import "github.com/opensource-finance/fuelrecon/internal/domain"

func group(n int) *int { return &n }

// PlatePatterns find an Italian plate in a free-text line description.
var PlatePatterns = []domain.RegexPattern{
	{Pattern: `(?i)targa\s*[:.]?\s*([A-Z]{2}\s?\d{3}\s?[A-Z]{2})`, Group: group(1), Transform: domain.TransformUppercase},
	{Pattern: `\b([A-Z]{2}\s?\d{3}\s?[A-Z]{2})\b`, Group: group(1)},
	{Pattern: `(?i)targa\s*[:.]?\s*([A-Z0-9]{5,8})\b`, Group: group(1), Transform: domain.TransformUppercase},
}

// DatePatterns find a purchase date in a free-text line description.
// Four-digit years are tried before two-digit ones.
var DatePatterns = []domain.RegexPattern{
	{Pattern: `\b(\d{1,2}/\d{1,2}/\d{4})\b`, Group: group(1)},
	{Pattern: `\b(\d{4}-\d{2}-\d{2})\b`, Group: group(1)},
	{Pattern: `\b(\d{1,2}-\d{1,2}-\d{4})\b`, Group: group(1)},
	{Pattern: `\b(\d{1,2}\.\d{1,2}\.\d{4})\b`, Group: group(1)},
	{Pattern: `\b(\d{1,2}/\d{1,2}/\d{2})\b`, Group: group(1)},
}

// FuelTypePatterns find the product name in a line description.
var FuelTypePatterns = []domain.RegexPattern{
	{Pattern: `(?i)\b(gasolio|diesel|benzina|senza piombo|gpl|metano|adblue|ad blue|hvo|idrogeno|elettric[oa]|ricarica)\b`, Group: group(1)},
}

// QuantityPatterns find litres in a line description.
var QuantityPatterns = []domain.RegexPattern{
	{Pattern: `(?i)(\d+(?:[.,]\d+)?)\s*(?:l|lt|litri)\b`, Group: group(1)},
}
