// Package i18n holds the user-facing string bundles for the bot and the
// CLI in Ukrainian and English.
package i18n

import (
	"strconv"
	"strings"
)

type Language = string

const (
	UA              Language = "ua"
	EN              Language = "en"
	DefaultLanguage          = UA
)

var translations = map[Language]map[string]string{
	UA: {
		// CLI
		"From":            "Звідки",
		"To":              "Куди",
		"Line":            "Лінія",
		"Time":            "Час",
		"Transfer":        "Пересадка",
		"min":             "хв",
		"Hour":            "Година",
		"Operating hours": "Години роботи",
		"CLOSED":          "ЗАКРИТО",
		"Station":         "Станція",
		"no_transfers":    "без пересадок",
		"transfers_one":   "{count} пересадка",
		"transfers_many":  "{count} пересадки",
		// Main menu
		"main_menu": "🏠 Головне меню",
		"route":     "🚇 Маршрут",
		"schedule":  "📅 Розклад",
		"stations":  "📋 Станції",
		// Navigation
		"back":   "🔙 Назад",
		"cancel": "❌ Скасувати",
		// Route building
		"from_station_prompt": "📍 Звідки їдемо? Спочатку оберіть лінію:",
		"to_station_prompt":   "📍 Куди їдемо? Спочатку оберіть лінію:",
		"select_station_line": "📍 Оберіть станцію на лінії {line}:",
		"time_prompt":         "⏰ Який час?",
		"day_type_prompt":     "📅 Оберіть тип дня:",
		"custom_time_prompt":  "⌚ Введіть час у форматі ГГ:ХХ (наприклад: 14:30)",
		// Time options
		"current_time":  "🕐 Поточний час",
		"custom_time":   "⌚ Свій час",
		"time_minus_20": "⏪ -20 хв",
		"time_minus_10": "◀ -10 хв",
		"time_plus_10":  "▶ +10 хв",
		"time_plus_20":  "⏩ +20 хв",
		// Day types
		"weekdays": "📅 Будні",
		"weekends": "🎉 Вихідні",
		"weekday":  "Будній",
		"weekend":  "Вихідний",
		// Errors
		"error_unknown_line":        "❌ Невідома лінія. Оберіть з клавіатури.",
		"error_unknown_choice":      "❌ Невідомий вибір. Оберіть з клавіатури.",
		"error_invalid_time_format": "❌ Неправильний формат часу. Введіть у форматі ГГ:ХХ (наприклад: 14:30)",
		"error_invalid_time":        "❌ Неправильний час. Введіть годину (0-23) та хвилини (0-59).\nНаприклад: 14:30",
		"error_station_not_found":   "❌ Станцію не знайдено: {station}\nСпробуйте ще раз через /route",
		"error_route_not_found":     "❌ Маршрут не знайдено\nСпробуйте інші станції.",
		"error_metro_closed":        "❌ Метро закрите та/або на останній потяг неможливо встигнути\nСпробуйте інший час або день.",
		"error_generic":             "❌ Помилка: {error}\nСпробуйте ще раз через /route",
		"error_cancelled":           "❌ Побудову маршруту скасовано",
		// Reminders
		"reminder_set":           "✅ Нагадування встановлено!",
		"reminder_cancelled":     "❌ Нагадування скасовано!",
		"reminder_exit_prepare":  "⏰ Готуйтесь виходити на наступній станції: {station}",
		"reminder_button":        "⏰ Вихід на {station}",
		"reminder_cancel_button": "❌ Скасувати нагадування на {time}",
		"reminder_set_short":     "встановлено",
		// Expired callbacks
		"outdated_button":     "❌ Ця кнопка застаріла. Будь ласка, побудуйте маршрут знову.",
		"error_invalid_data":  "❌ Помилка: неправильний формат даних",
		"error_route_expired": "❌ Помилка: маршрут не знайдено або застарів",
		"error_invalid_line":  "❌ Помилка: неправильний індекс лінії",
		// Common / menu
		"start_message":      "🚇 Бот для планування маршрутів Харківського метро\n\nОберіть дію:",
		"select_line":        "📅 Оберіть лінію метро:",
		"session_restored":   "🤖 Сеанс відновлено\n\nСхоже, сесія закінчилась.\nПовертаємось до головного меню:",
		"schedule_not_found": "❌ Розклад не знайдено",
		"schedule_cancelled": "❌ Перегляд розкладу скасовано",
		"stations_cancelled": "❌ Перегляд станцій скасовано",
		"direction":          "Напрямок",
		"select_language":    "🌐 Оберіть мову / Select language:",
		"language_set":       "✅ Мову змінено на Українську",
		"data_deleted":       "✅ Ваші дані видалено",
		"about_message": "🚇 Цей бот допомагає знаходити оптимальні маршрути та переглядати розклад Харківського метрополітену.\n\n" +
			"Основні функції:\n" +
			"• Гнучка побудова маршруту з пересадками та часом на поїздку\n" +
			"• Нагадування перед виходом за одну станцію\n" +
			"• Розклад станцій по буднях та вихідних",
	},
	EN: {
		"From":            "From",
		"To":              "To",
		"Line":            "Line",
		"Time":            "Time",
		"Transfer":        "Transfer",
		"min":             "min",
		"Hour":            "Hour",
		"Operating hours": "Operating hours",
		"CLOSED":          "CLOSED",
		"Station":         "Station",
		"no_transfers":    "no transfers",
		"transfers_one":   "{count} transfer",
		"transfers_many":  "{count} transfers",
		"main_menu":       "🏠 Main menu",
		"route":           "🚇 Route",
		"schedule":        "📅 Schedule",
		"stations":        "📋 Stations",
		"back":            "🔙 Back",
		"cancel":          "❌ Cancel",
		"from_station_prompt": "📍 Where are you traveling from? First, select a line:",
		"to_station_prompt":   "📍 Where are you going to? First, select a line:",
		"select_station_line": "📍 Select a station on the {line} line:",
		"time_prompt":         "⏰ What time?",
		"day_type_prompt":     "📅 Select day type:",
		"custom_time_prompt":  "⌚ Enter time in HH:MM format (e.g., 14:30)",
		"current_time":        "🕐 Current time",
		"custom_time":         "⌚ Custom time",
		"time_minus_20":       "⏪ -20 min",
		"time_minus_10":       "◀ -10 min",
		"time_plus_10":        "▶ +10 min",
		"time_plus_20":        "⏩ +20 min",
		"weekdays":            "📅 Weekdays",
		"weekends":            "🎉 Weekends",
		"weekday":             "Weekday",
		"weekend":             "Weekend",
		"error_unknown_line":        "❌ Unknown line. Please select from the keyboard.",
		"error_unknown_choice":      "❌ Unknown choice. Please select from the keyboard.",
		"error_invalid_time_format": "❌ Invalid time format. Enter in HH:MM format (e.g., 14:30)",
		"error_invalid_time":        "❌ Invalid time. Enter hour (0-23) and minutes (0-59).\nExample: 14:30",
		"error_station_not_found":   "❌ Station not found: {station}\nPlease try again via /route",
		"error_route_not_found":     "❌ Route not found\nPlease try other stations.",
		"error_metro_closed":        "❌ Metro is closed and/or you cannot catch the last train\nPlease try another time or day.",
		"error_generic":             "❌ Error: {error}\nPlease try again via /route",
		"error_cancelled":           "❌ Route planning cancelled",
		"reminder_set":           "✅ Reminder set!",
		"reminder_cancelled":     "❌ Reminder cancelled!",
		"reminder_exit_prepare":  "⏰ Get ready to exit at the next station: {station}",
		"reminder_button":        "⏰ Exit at {station}",
		"reminder_cancel_button": "❌ Cancel reminder at {time}",
		"reminder_set_short":     "set",
		"outdated_button":     "❌ This button is outdated. Please rebuild your route.",
		"error_invalid_data":  "❌ Error: invalid data format",
		"error_route_expired": "❌ Error: route not found or expired",
		"error_invalid_line":  "❌ Error: invalid line index",
		"start_message":      "🚇 Kharkiv Metro Route Planner Bot\n\nChoose an action:",
		"select_line":        "📅 Select a metro line:",
		"session_restored":   "🤖 Session restored\n\nLooks like the session has expired.\nReturning to main menu:",
		"schedule_not_found": "❌ Schedule not found",
		"schedule_cancelled": "❌ Schedule lookup cancelled",
		"stations_cancelled": "❌ Stations lookup cancelled",
		"direction":          "Direction",
		"select_language":    "🌐 Select language / Оберіть мову:",
		"language_set":       "✅ Language changed to English",
		"data_deleted":       "✅ Your data has been deleted",
		"about_message": "🚇 This bot helps find optimal routes and view schedules for Kharkiv Metro.\n\n" +
			"Main features:\n" +
			"• Flexible route building with transfers and travel time\n" +
			"• Reminders one station before exit\n" +
			"• Station schedules for weekdays and weekends",
	},
}

// T returns the translated text for key, falling back to the default
// language and finally to the key itself.
func T(lang Language, key string) string {
	if bundle, ok := translations[lang]; ok {
		if text, ok := bundle[key]; ok {
			return text
		}
	}
	if text, ok := translations[DefaultLanguage][key]; ok {
		return text
	}
	return key
}

// Tf returns the translated text with {placeholder} substitutions.
func Tf(lang Language, key string, args map[string]string) string {
	text := T(lang, key)
	for name, value := range args {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

// Transfers renders a transfer count.
func Transfers(lang Language, count int) string {
	switch {
	case count == 0:
		return T(lang, "no_transfers")
	case count == 1:
		return Tf(lang, "transfers_one", map[string]string{"count": "1"})
	default:
		return Tf(lang, "transfers_many", map[string]string{"count": strconv.Itoa(count)})
	}
}
