package rewards

import "strconv"

// FormatPoints renders a point count with thousands separators.
func FormatPoints(points Points) string {
	raw := strconv.FormatInt(points.Int64(), 10)
	negative := false
	if len(raw) > 0 && raw[0] == '-' {
		negative = true
		raw = raw[1:]
	}
	var grouped []byte
	for index, digit := range []byte(raw) {
		if index > 0 && (len(raw)-index)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, digit)
	}
	if negative {
		return "-" + string(grouped)
	}
	return string(grouped)
}

// FormatCash renders the peso value of a point amount, e.g. "₱10.00".
func FormatCash(points Points) string {
	return "₱" + CashValue(points).StringFixed(2)
}
