package redis

import "fmt"

const ns = "ferrygo:v1"

func KeyVoyageSummary(voyageID int64) string {
	return fmt.Sprintf("%s:voyage:%d:summary", ns, voyageID)
}

func KeyVoyageAvailability(voyageID int64) string {
	return fmt.Sprintf("%s:voyage:%d:availability", ns, voyageID)
}

func KeyVoyageSeatMap(voyageID int64) string {
	return fmt.Sprintf("%s:voyage:%d:seatmap", ns, voyageID)
}

func KeyStation(stationID int64) string {
	return fmt.Sprintf("%s:station:%d", ns, stationID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelVoyagesChanged() string {
	return ns + ":voyages:changed"
}

func ChannelNotifications() string {
	return ns + ":notifications"
}
