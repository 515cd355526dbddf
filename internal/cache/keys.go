package cache

// Ключи кэша.
const (
	tourPrefix   = "tour:"
	TourStatsKey = "tours:stats"
)

// TourKey возвращает ключ кэша документа тура.
func TourKey(id string) string {
	return tourPrefix + id
}
