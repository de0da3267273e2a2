package server

import (
	"strings"

	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/types"
)

// handleSchedule covers the SCHEDULE* verbs
func handleSchedule(d *Dispatcher, sess *Session, verb string, args []string) (protocol.Value, bool, error) {
	ops := d.svc.Schedules
	switch verb {
	case "SCHEDULEADD":
		return scheduleMutation(d, sess, args, ops.Add)

	case "SCHEDULESET":
		return scheduleMutation(d, sess, args, ops.Replace)

	case "SCHEDULEMODIFY":
		return scheduleMutation(d, sess, args, ops.Modify)

	case "SCHEDULEDROP":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := checkOwner(sess, d.svc.Games, gid); err != nil {
			return protocol.Null(), true, err
		}
		return protocol.OK(), true, ops.Drop(gid)

	case "SCHEDULELIST":
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := d.svc.Games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		items, err := ops.GetAll(gid)
		if err != nil {
			return protocol.Null(), true, err
		}
		vs := make([]protocol.Value, len(items))
		for i, item := range items {
			vs[i] = scheduleValue(item)
		}
		return protocol.NewArray(vs...), true, nil

	case "SCHEDULESHOW":
		// <gid> [turnlimit [timelimit]]
		if err := needArgs(args, 1); err != nil {
			return protocol.Null(), true, err
		}
		gid, err := argInt(args, 0)
		if err != nil {
			return protocol.Null(), true, err
		}
		if err := d.svc.Games.CheckRead(gid, sess.User); err != nil {
			return protocol.Null(), true, err
		}
		turnLimit := 10
		if len(args) > 1 {
			if turnLimit, err = argInt(args, 1); err != nil {
				return protocol.Null(), true, err
			}
		}
		now := d.svc.Clock.Now()
		timeLimit := int64(0)
		if len(args) > 2 {
			if timeLimit, err = argInt64(args, 2); err != nil {
				return protocol.Null(), true, err
			}
		}
		times, err := ops.Preview(gid, now, timeLimit, turnLimit)
		if err != nil {
			return protocol.Null(), true, err
		}
		vs := make([]protocol.Value, len(times))
		for i, t := range times {
			vs[i] = protocol.NewInt(t)
		}
		return protocol.NewArray(vs...), true, nil
	}
	return protocol.Null(), false, nil
}

// scheduleMutation factors the common <gid> <sched-spec...> pattern
func scheduleMutation(d *Dispatcher, sess *Session, args []string, op func(int, schedule.Spec) error) (protocol.Value, bool, error) {
	if err := needArgs(args, 1); err != nil {
		return protocol.Null(), true, err
	}
	gid, err := argInt(args, 0)
	if err != nil {
		return protocol.Null(), true, err
	}
	if err := checkOwner(sess, d.svc.Games, gid); err != nil {
		return protocol.Null(), true, err
	}
	spec, err := parseScheduleSpec(args[1:])
	if err != nil {
		return protocol.Null(), true, err
	}
	return protocol.OK(), true, op(gid, spec)
}

// parseScheduleSpec reads the token stream of the SCHEDULE* verbs:
//
//	DAILY n | WEEKLY mask | ASAP | MANUAL | STOP
//	DAYTIME m  DELAY m  EARLY 0/1
//	UNTILTURN n | UNTILTIME t | FOREVER
//
// Tokens not given remain nil and default inside the schedule service.
func parseScheduleSpec(args []string) (schedule.Spec, error) {
	var spec schedule.Spec
	setType := func(t types.ScheduleType) { spec.Type = &t }
	setCond := func(c types.EndCondition) { spec.Condition = &c }

	next := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", protocol.ErrBadRequest("%s needs a value", args[i])
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "DAILY":
			if _, err := next(i); err != nil {
				return spec, err
			}
			n, err := argInt(args, i+1)
			if err != nil {
				return spec, err
			}
			setType(types.ScheduleDaily)
			spec.Interval = &n
			i++
		case "WEEKLY":
			if _, err := next(i); err != nil {
				return spec, err
			}
			n, err := argInt(args, i+1)
			if err != nil {
				return spec, err
			}
			if n < 0 || n > 127 {
				return spec, protocol.ErrBadRequest("bad weekday mask %d", n)
			}
			mask := uint8(n)
			setType(types.ScheduleWeekly)
			spec.WeekDays = &mask
			i++
		case "ASAP":
			setType(types.ScheduleASAP)
		case "MANUAL":
			setType(types.ScheduleManual)
		case "STOP":
			setType(types.ScheduleStop)
		case "DAYTIME":
			if _, err := next(i); err != nil {
				return spec, err
			}
			n, err := argInt(args, i+1)
			if err != nil {
				return spec, err
			}
			spec.Daytime = &n
			i++
		case "DELAY":
			if _, err := next(i); err != nil {
				return spec, err
			}
			n, err := argInt(args, i+1)
			if err != nil {
				return spec, err
			}
			spec.HostDelay = &n
			i++
		case "EARLY":
			if _, err := next(i); err != nil {
				return spec, err
			}
			b, err := argBool(args, i+1)
			if err != nil {
				return spec, err
			}
			spec.HostEarly = &b
			i++
		case "UNTILTURN":
			if _, err := next(i); err != nil {
				return spec, err
			}
			n, err := argInt(args, i+1)
			if err != nil {
				return spec, err
			}
			setCond(types.EndTurn)
			spec.ConditionTurn = &n
			i++
		case "UNTILTIME":
			if _, err := next(i); err != nil {
				return spec, err
			}
			t, err := argInt64(args, i+1)
			if err != nil {
				return spec, err
			}
			setCond(types.EndTime)
			spec.ConditionTime = &t
			i++
		case "FOREVER":
			setCond(types.EndForever)
		default:
			return spec, protocol.ErrBadRequest("bad schedule token %q", args[i])
		}
	}
	return spec, nil
}

func scheduleValue(item *types.ScheduleItem) protocol.Value {
	return protocol.NewMap(
		protocol.MapEntry{Key: "type", Value: protocol.NewString(string(item.Type))},
		protocol.MapEntry{Key: "interval", Value: protocol.NewInt(int64(item.Interval))},
		protocol.MapEntry{Key: "weekdays", Value: protocol.NewInt(int64(item.WeekDays))},
		protocol.MapEntry{Key: "daytime", Value: protocol.NewInt(int64(item.Daytime))},
		protocol.MapEntry{Key: "hostdelay", Value: protocol.NewInt(int64(item.HostDelay))},
		protocol.MapEntry{Key: "hostearly", Value: boolValue(item.HostEarly)},
		protocol.MapEntry{Key: "condition", Value: protocol.NewString(string(item.Condition))},
		protocol.MapEntry{Key: "condturn", Value: protocol.NewInt(int64(item.ConditionTurn))},
		protocol.MapEntry{Key: "condtime", Value: protocol.NewInt(item.ConditionTime)},
		protocol.MapEntry{Key: "description", Value: protocol.NewString(schedule.Describe(item))},
	)
}
