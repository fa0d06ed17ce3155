package actions

// ToolName is the single function the model is offered.
const ToolName = "execute_travel_action"

// ToolDescription describes ToolName to the model.
const ToolDescription = "Execute travel planning actions like searching POIs, hotels, or finalizing itinerary"

// ToolParameters returns the JSON schema of the tool arguments.
func ToolParameters() map[string]any {
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{string(KindSearchPOIs), string(KindSearchHotels), string(KindFinalizeItinerary)},
				"description": "The action to execute",
			},
			"city":    str("City name"),
			"country": str("Country name (optional)"),
			"categories": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "POI categories for search_pois action",
			},
			"budget_tier": map[string]any{
				"type":        "string",
				"enum":        []string{"budget", "mid", "premium"},
				"description": "Budget tier for hotels or itinerary",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return",
			},
			"start_date": str("Start date in YYYY-MM-DD format for finalize_itinerary"),
			"end_date":   str("End date in YYYY-MM-DD format for finalize_itinerary"),
			"days": map[string]any{
				"type":        "array",
				"description": "Array of day objects for finalize_itinerary",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"day_index": map[string]any{"type": "integer"},
						"date":      map[string]any{"type": "string"},
						"activities": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"type": map[string]any{
										"type": "string",
										"enum": []string{"poi", "hotel", "meal", "transit"},
									},
									"name":        map[string]any{"type": "string"},
									"external_id": map[string]any{"type": "string"},
									"start_time":  map[string]any{"type": "string"},
									"end_time":    map[string]any{"type": "string"},
									"notes":       map[string]any{"type": "string"},
								},
								"required": []string{"type", "name"},
							},
						},
					},
					"required": []string{"day_index", "date", "activities"},
				},
			},
		},
		"required":             []string{"action", "city"},
		"additionalProperties": false,
	}
}
