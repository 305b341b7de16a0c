package items

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 検索はダイアクリティカルマーク非依存にする。
// "Erlenmeyerkölbchen" と "erlenmeyerkolbchen" を同一視するため、
// NFD 展開 → 結合文字除去 → NFC 再合成 → 小文字化した形を
// name_folded 列に保存し、検索語にも同じ変換をかける。
var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldString(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}
