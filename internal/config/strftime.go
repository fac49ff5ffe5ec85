package config

import "strings"

// strftime conversion specifiers mapped to Go reference-time layouts.
// Only the specifiers date(1) commonly sees in commit timestamps are
// covered; unknown specifiers pass through literally.
var strftimeLayouts = map[byte]string{
	'a': "Mon",
	'A': "Monday",
	'b': "Jan",
	'B': "January",
	'd': "02",
	'D': "01/02/06",
	'e': "_2",
	'F': "2006-01-02",
	'H': "15",
	'I': "03",
	'j': "002",
	'm': "01",
	'M': "04",
	'n': "\n",
	'p': "PM",
	'R': "15:04",
	'S': "05",
	't': "\t",
	'T': "15:04:05",
	'y': "06",
	'Y': "2006",
	'z': "-0700",
	'Z': "MST",
}

// TranslateDateFormat converts a strftime-style date format into a Go
// time layout. A leading "+" (as passed to date(1)) is stripped.
func TranslateDateFormat(format string) string {
	format = strings.TrimPrefix(format, "+")

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i == len(format)-1 {
			b.WriteByte(format[i])
			continue
		}

		i++
		switch spec := format[i]; spec {
		case '%':
			b.WriteByte('%')
		default:
			if layout, ok := strftimeLayouts[spec]; ok {
				b.WriteString(layout)
			} else {
				b.WriteByte('%')
				b.WriteByte(spec)
			}
		}
	}

	return b.String()
}
