package agent

// CatalogVersion identifies the tool catalog revision sent to the model.
const CatalogVersion = "1"

// Tool names exposed to the model. They match the tools served by the
// data-access subprocess one to one.
const (
	ToolListObjects      = "list_objects"
	ToolGetObjectDetails = "get_object_details"
	ToolExecuteSQL       = "execute_sql"
)

// Catalog returns the fixed three-tool catalog. It is supplied identically
// on every turn where tool use is permitted.
func Catalog() []Tool {
	return []Tool{
		{
			Name:        ToolListObjects,
			Description: "List database objects (tables and views) in a schema.",
			InputSchema: map[string]any{
				"properties": map[string]any{
					"schema_name": map[string]any{
						"type":        "string",
						"description": "Schema name (use 'public')",
					},
				},
				"required": []string{"schema_name"},
			},
		},
		{
			Name:        ToolGetObjectDetails,
			Description: "Get detailed column information (names, types, nullability) for one database object.",
			InputSchema: map[string]any{
				"properties": map[string]any{
					"object_name": map[string]any{
						"type":        "string",
						"description": "Name of the database object",
					},
					"schema_name": map[string]any{
						"type":        "string",
						"description": "Schema the object belongs to (defaults to 'public')",
					},
				},
				"required": []string{"object_name"},
			},
		},
		{
			Name:        ToolExecuteSQL,
			Description: "Execute a read-only SQL query and return the matching rows.",
			InputSchema: map[string]any{
				"properties": map[string]any{
					"sql": map[string]any{
						"type":        "string",
						"description": "SQL query to execute",
					},
				},
				"required": []string{"sql"},
			},
		},
	}
}
