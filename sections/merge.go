package sections

import "github.com/wudi/pdfedit/model"

type MergeOptions struct {
	// KeepTitleVariants records the titles of folded sections in AltTitles
	// instead of discarding them.
	KeepTitleVariants bool
}

// MergeByType collapses sections of the same type into the first one
// encountered. Items are concatenated in encounter order and bounds on the
// same page are unioned. Orders are renumbered from zero.
func MergeByType(sections []model.ResumeSection) []model.ResumeSection {
	return MergeByTypeWith(sections, MergeOptions{})
}

func MergeByTypeWith(sections []model.ResumeSection, opts MergeOptions) []model.ResumeSection {
	out := make([]model.ResumeSection, 0, len(sections))
	index := make(map[model.SectionType]int)
	for _, s := range sections {
		i, ok := index[s.Type]
		if !ok {
			index[s.Type] = len(out)
			out = append(out, s.Clone())
			continue
		}
		dst := &out[i]
		for _, it := range s.Items {
			dst.Items = append(dst.Items, it.Clone())
		}
		if s.Bounds.PageIndex == dst.Bounds.PageIndex {
			dst.Bounds.Rect = dst.Bounds.Rect.Union(s.Bounds.Rect)
		}
		if opts.KeepTitleVariants {
			dst.AltTitles = appendVariant(dst.AltTitles, dst.Title, s.Title)
			dst.AltTitles = appendVariants(dst.AltTitles, dst.Title, s.AltTitles)
		}
	}
	for i := range out {
		out[i].Order = i
	}
	return out
}

func appendVariant(list []string, primary, title string) []string {
	if title == "" || title == primary {
		return list
	}
	for _, t := range list {
		if t == title {
			return list
		}
	}
	return append(list, title)
}

func appendVariants(list []string, primary string, titles []string) []string {
	for _, t := range titles {
		list = appendVariant(list, primary, t)
	}
	return list
}
