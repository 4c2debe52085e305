package tools

import (
	"context"
	"fmt"
	"time"
)

// DatetimeToolName is the registered name of the built-in datetime tool.
const DatetimeToolName = "get_current_datetime"

// datetimeArgs are the parameters accepted by the datetime tool.
type datetimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as Asia/Shanghai; defaults to the request timezone"`
}

// NewDatetimeTool returns the tool that reports the current date and
// time. defaultTZ is used when the model omits the timezone argument.
func NewDatetimeTool(defaultTZ string) Tool {
	return NewFuncTool(
		DatetimeToolName,
		"Returns the current date, time, and weekday for a timezone. Use this for any question about the current date or time.",
		func(ctx context.Context, args datetimeArgs) (string, error) {
			tz := args.Timezone
			if tz == "" {
				tz = defaultTZ
			}
			return CurrentDatetime(tz)
		},
	)
}

// CurrentDatetime formats the current moment in the given timezone.
// An unknown timezone falls back to UTC rather than failing; the answer
// is still useful and the zone is named in the output.
func CurrentDatetime(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
		tz = "UTC"
	}
	now := time.Now().In(loc)
	return fmt.Sprintf("%s (%s, %s)", now.Format("2006-01-02 15:04:05"), now.Weekday(), tz), nil
}
