package types

import "time"

// Question is one askable quiz item, either from a static bank or a dynamic provider.
type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"frage"`
	Answers  []string `json:"antworten"`
	Category string   `json:"category"`
}

// QuestionInfo is the live question of an area. At most one exists per area.
type QuestionInfo struct {
	QuestionID string    `json:"question_id"`
	MessageID  string    `json:"message_id"`
	ChannelID  string    `json:"channel_id"`
	EndTime    time.Time `json:"end_time"`
	Answers    []string  `json:"answers"`
	Frage      string    `json:"frage"`
	Category   string    `json:"category"`
}

// ScheduleRecord is the persisted resume point of an area scheduler.
type ScheduleRecord struct {
	PostTime  time.Time `json:"post_time"`
	WindowEnd time.Time `json:"window_end"`
}

// Area is one configured quiz channel.
type Area struct {
	Name              string        `json:"name"`
	ChannelID         string        `json:"channel_id"`
	TimeWindow        time.Duration `json:"time_window"`
	Language          string        `json:"language"`
	Active            bool          `json:"active"`
	ActivityThreshold int           `json:"activity_threshold"`
}

// WindowMinutes is the persisted form of TimeWindow.
func (a Area) WindowMinutes() int {
	return int(a.TimeWindow / time.Minute)
}
