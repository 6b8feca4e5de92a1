package filters

import "github.com/wudi/pdfedit/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream
// dictionary, resolving indirect values through doc.
func ExtractFilters(doc *raw.Document, dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	var params []*raw.DictObj

	filterObj, ok := dict.Get("Filter")
	if !ok {
		return names, params
	}
	switch f := doc.Resolve(filterObj).(type) {
	case raw.NameObj:
		names = append(names, f.Val)
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := doc.AsName(item); ok {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		return names, params
	}
	pObj, ok := dict.Get("DecodeParms")
	if !ok {
		return names, params
	}
	switch p := doc.Resolve(pObj).(type) {
	case *raw.DictObj:
		params = append(params, p)
	case *raw.ArrayObj:
		for _, item := range p.Items {
			d, _ := doc.AsDict(item)
			params = append(params, d)
		}
	}
	return names, params
}
