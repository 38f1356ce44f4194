package entity

// PerformanceCounter counts chats closed by one agent on one day.
type PerformanceCounter struct {
	Agent string `json:"agent" bson:"agent"`
	Day   string `json:"day" bson:"day"`
	Count int64  `json:"count" bson:"count"`
}

const DayLayout = "2006-01-02"
