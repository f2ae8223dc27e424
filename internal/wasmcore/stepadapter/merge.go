package stepadapter

// deepMerge writes src into dst per spec §4.7's merge rule: nested maps are
// merged key-wise, scalars and arrays replace, and keys absent from src are
// never deleted from dst.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, dstIsMap := dst[k].(map[string]any)
		if !dstIsMap {
			dst[k] = v
			continue
		}
		deepMerge(dstMap, srcMap)
	}
}
