package scheduler

import (
	"fmt"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

const arrivalPrefix = "バス位置情報更新:\n"

func arrivalText(rec domain.ArrivalRecord) string {
	return arrivalPrefix + rec.Text
}

func completionText(j *Job) string {
	return fmt.Sprintf("%s発（%s → %s）のバス位置情報の監視を終了しました。",
		domain.FormatClock(j.Window.Departure), j.Route.Boarding, j.Route.Alighting)
}
