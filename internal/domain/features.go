package domain

// Category is a three-level bucket for a nutrient value
type Category string

const (
	CategoryLow      Category = "Low"
	CategoryModerate Category = "Moderate"
	CategoryHigh     Category = "High"
)

// RiskLevel is the composite health risk label
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low Risk"
	RiskModerate RiskLevel = "Moderate Risk"
	RiskHigh     RiskLevel = "High Risk"
)

// BrandSize classifies a brand by how often it occurs in a dataset
type BrandSize string

const (
	BrandMinor  BrandSize = "Minor"
	BrandMedium BrandSize = "Medium"
	BrandMajor  BrandSize = "Major"
)

// ParseCategory validates a stored category label
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryLow, CategoryModerate, CategoryHigh:
		return Category(s), true
	}
	return "", false
}

// ParseRiskLevel validates a stored risk label
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskModerate, RiskHigh:
		return RiskLevel(s), true
	}
	return "", false
}

// ParseBrandSize validates a stored brand size label
func ParseBrandSize(s string) (BrandSize, bool) {
	switch BrandSize(s) {
	case BrandMinor, BrandMedium, BrandMajor:
		return BrandSize(s), true
	}
	return "", false
}
