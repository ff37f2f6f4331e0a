package domain

import "time"

// CancellationWindow: интервал после оформления, в течение которого заказ можно отменить.
const CancellationWindow = 10 * time.Minute

// CancellationAllowed сообщает, укладывается ли момент now в окно отмены заказа,
// оформленного в placedAt. Граница строгая: ровно 10 минут уже считается просроченным.
// Берётся модуль разницы, чтобы расхождение часов в обе стороны трактовалось одинаково.
func CancellationAllowed(placedAt, now time.Time) bool {
	return now.Sub(placedAt).Abs() < CancellationWindow
}
