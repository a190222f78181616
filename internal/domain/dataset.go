package domain

// RawDataset is the ordered sequence of records as received from the catalog.
// Product codes are neither guaranteed unique nor populated.
type RawDataset struct {
	Records []ProductRecord `json:"records"`
}

// Len returns the number of records
func (d RawDataset) Len() int { return len(d.Records) }

// CleaningBounds is the outlier acceptance interval computed for one column
type CleaningBounds struct {
	Column NutrientColumn `json:"column"`
	Q1     float64        `json:"q1"`
	Q3     float64        `json:"q3"`
	Lower  float64        `json:"lower"`
	Upper  float64        `json:"upper"`
}

// Contains reports whether v lies inside the closed interval
func (b CleaningBounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// CleaningReport carries the audit counts of one cleaning pass
type CleaningReport struct {
	InputRecords        int                        `json:"inputRecords"`
	DroppedUnidentified int                        `json:"droppedUnidentified"`
	DroppedDuplicates   int                        `json:"droppedDuplicates"`
	DroppedIncomplete   int                        `json:"droppedIncomplete"`
	Imputed             map[NutrientColumn]int     `json:"imputed"`
	Medians             map[NutrientColumn]float64 `json:"medians"`
	DroppedOutliers     int                        `json:"droppedOutliers"`
	Bounds              []CleaningBounds           `json:"bounds"`
	OutputRecords       int                        `json:"outputRecords"`
}

// TotalImputed sums imputed values across columns
func (r CleaningReport) TotalImputed() int {
	total := 0
	for _, n := range r.Imputed {
		total += n
	}
	return total
}

// CleanedDataset is the repaired subset of a RawDataset.
// No record has more than 30% of nutrient fields missing, and every monitored
// column lies within its computed acceptance interval.
type CleanedDataset struct {
	Records []ProductRecord `json:"records"`
	Report  CleaningReport  `json:"report"`
}

// Len returns the number of records
func (d CleanedDataset) Len() int { return len(d.Records) }

// EngineeredRecord is a cleaned record plus derived classification fields
type EngineeredRecord struct {
	ProductRecord
	CalorieCategory  Category  `json:"calorieCategory"`
	SugarCategory    Category  `json:"sugarCategory"`
	SugarToCarbRatio *float64  `json:"sugarToCarbRatio"`
	IsUltraProcessed bool      `json:"isUltraProcessed"`
	HealthRiskScore  RiskLevel `json:"healthRiskScore"`
	BrandSize        BrandSize `json:"brandSize"`
}

// EngineeredDataset is the feature-engineered snapshot handed to the Loader
type EngineeredDataset struct {
	Records []EngineeredRecord `json:"records"`
}

// Len returns the number of records
func (d EngineeredDataset) Len() int { return len(d.Records) }

// Base strips the derived fields, yielding a dataset the feature engineer can consume again
func (d EngineeredDataset) Base() CleanedDataset {
	records := make([]ProductRecord, len(d.Records))
	for i, r := range d.Records {
		records[i] = r.ProductRecord
	}
	return CleanedDataset{Records: records}
}

// Find returns the record with the given product code
func (d EngineeredDataset) Find(code string) (EngineeredRecord, error) {
	for _, r := range d.Records {
		if r.ProductCode == code {
			return r, nil
		}
	}
	return EngineeredRecord{}, ErrProductNotFound
}
