package conversation

import (
	"fmt"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

// UI texts in Japanese
const (
	helpText = "🚏 バス接近通知ボットです。\n\n" +
		"「設定開始」で乗車停留所・降車停留所・乗車時刻を設定すると、" +
		"乗車時刻の7分前から5分後までバスの接近情報をお知らせします。\n\n" +
		"・設定開始 (/start)\n・監視停止 (/cancel)\n・ヘルプ (/help)"
	idleText = "「設定開始」と送信すると通知の設定を始めます。\n使い方は「ヘルプ」をご覧ください。"

	boardingPrompt     = "乗車停留所を選択してください"
	alightingPrompt    = "降車停留所を選択してください"
	boardingSearchText = "乗車する停留所名を入力してください。"
	alightSearchText   = "降車する停留所名を入力してください。"
	notFoundText       = "申し訳ありません。その停留所は見つかりませんでした。\n別の停留所名を入力してください。"
	candidatesText     = "候補が複数見つかりました。選択してください。"
	sameStopText       = "乗車停留所と同じ停留所は選べません。別の停留所を選択してください。"
	timePrompt         = "乗車時刻を選択してください"
	manualTimeText     = "乗車時刻を「HH:MM」の形式で入力してください（例：08:30）"
	invalidTimeText    = "正しい時刻形式で入力してください（例：08:30）"
	cancelledText      = "バス位置情報の監視を停止しました。"
	nothingToCancel    = "停止する監視はありません。"
	registerErrorText  = "監視の登録に失敗しました。時間をおいて再度お試しください。"

	searchLabel = "その他（検索）"
	manualLabel = "手入力"
)

func boardingSelectedText(name string) string {
	return fmt.Sprintf("乗車停留所: %s\n%s", name, alightingPrompt)
}

func alightingSelectedText(name string) string {
	return fmt.Sprintf("降車停留所: %s\n%s", name, timePrompt)
}

func confirmText(r domain.Route, w domain.Window) string {
	return fmt.Sprintf("設定が完了しました：\n乗車停留所: %s\n降車停留所: %s\n乗車時刻: %s\n\n"+
		"乗車時刻の7分前（%s）からバスの位置情報の監視を開始します。",
		r.Boarding, r.Alighting, domain.FormatClock(w.Departure), domain.FormatClock(w.Activation))
}

func windowPassedText(departure string) string {
	return fmt.Sprintf("乗車時刻 %s の監視開始時刻をすでに過ぎているため、監視を登録できませんでした。\n"+
		"「設定開始」からもう一度設定してください。", departure)
}
