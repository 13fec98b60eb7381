// Package barcode renders Code 128 barcodes as SVG images for item records.
package barcode

import (
	"fmt"
)

// Code 128 special symbol values.
const (
	startCodeB = 104
	stopCode   = 106
)

// patterns holds the bar/space module widths for every Code 128 symbol
// value 0-106. Each regular symbol is 11 modules wide; the stop symbol
// (106) includes the two-module termination bar for 13 total.
var patterns = [107]string{
	"212222", "222122", "222221", "121223", "121322", "131222", "122213",
	"122312", "132212", "221213", "221312", "231212", "112232", "122132",
	"122231", "113222", "123122", "123221", "223211", "221132", "221231",
	"213212", "223112", "312131", "311222", "321122", "321221", "312212",
	"322112", "322211", "212123", "212321", "232121", "111323", "131123",
	"131321", "112313", "132113", "132311", "211313", "231113", "231311",
	"112133", "112331", "132131", "113123", "113321", "133121", "313121",
	"211331", "231131", "213113", "213311", "213131", "311123", "311321",
	"331121", "312113", "312311", "332111", "314111", "221411", "431111",
	"111224", "111422", "121124", "121421", "141122", "141221", "112214",
	"112412", "122114", "122411", "142112", "142211", "241211", "221114",
	"413111", "241112", "134111", "111242", "121142", "121241", "114212",
	"124112", "124211", "411212", "421112", "421211", "212141", "214121",
	"412121", "111143", "111341", "131141", "114113", "114311", "411113",
	"411311", "113141", "114131", "311141", "411131", "211412", "211214",
	"211232", "2331112",
}

// symbolValues encodes text in code set B and returns the full symbol
// sequence: start code, data, checksum, stop.
func symbolValues(text string) ([]int, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot encode empty text")
	}

	values := []int{startCodeB}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < 32 || c > 126 {
			return nil, fmt.Errorf("byte %#x at position %d is outside code set B", c, i)
		}
		values = append(values, int(c)-32)
	}

	checksum := startCodeB
	for i, v := range values[1:] {
		checksum += v * (i + 1)
	}
	values = append(values, checksum%103, stopCode)

	return values, nil
}

// moduleWidths returns the alternating bar/space widths (in modules) for
// text, starting and ending with a bar.
func moduleWidths(text string) ([]int, error) {
	values, err := symbolValues(text)
	if err != nil {
		return nil, err
	}

	var widths []int
	for _, v := range values {
		for _, digit := range patterns[v] {
			widths = append(widths, int(digit-'0'))
		}
	}
	return widths, nil
}
