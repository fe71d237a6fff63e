package template

// Merge layers override maps over the schema's defaults. Layers apply in
// order via shallow key overwrite, later layers winning on collisions; keys
// a layer does not mention are left as the prior state produced them.
// Returns a fresh map and never mutates its inputs.
func Merge(schema *Schema, layers ...map[string]any) map[string]any {
	merged := schema.DefaultValues()
	for _, layer := range layers {
		for key, value := range layer {
			merged[key] = value
		}
	}
	return merged
}
