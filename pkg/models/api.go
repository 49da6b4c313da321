package models

type SearchRequest struct {
	Query               string   `json:"query" validate:"required,min=1,max=100"`
	Category            string   `json:"category,omitempty" validate:"max=50"`
	Enhanced            bool     `json:"enhanced"`
	MaxResultsPerSource int      `json:"max_results_per_source,omitempty" validate:"omitempty,min=1,max=80"`
	MaxTotalResults     int      `json:"max_total_results,omitempty" validate:"omitempty,min=1,max=200"`
	ExcludeSources      []string `json:"exclude_sources,omitempty"`
	PrioritySources     []string `json:"priority_sources,omitempty"`
	TimeoutSeconds      int      `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=60"`
}

type CollectItemRequest struct {
	Item         CollectionItem `json:"item" validate:"required"`
	ForceRestart bool           `json:"force_restart"`
}

type CollectCategoryRequest struct {
	Items        []CollectionItem `json:"items" validate:"required,min=1,max=500,dive"`
	ForceRestart bool             `json:"force_restart"`
}

type AssessRequest struct {
	ImageURL    string `json:"image_url" validate:"required,url"`
	ItemName    string `json:"item_name" validate:"required,max=100"`
	Category    string `json:"category" validate:"required,max=50"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// AssessUpload carries the form fields of a multipart assessment.
type AssessUpload struct {
	ItemName    string `form:"item_name" validate:"required,max=100"`
	Category    string `form:"category" validate:"required,max=50"`
	Description string `form:"description" validate:"max=500"`
}
