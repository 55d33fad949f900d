package service

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/arunvijo/SmartOPDAgent/internal/model"
)

// ── 预约日历导出 ──────────────────────────────────────────────
//
// 将患者的预约记录生成 iCalendar (RFC 5545) 订阅内容：
//   - 每条预约一个 VEVENT，UID 固定为 booking_id，重复订阅不会产生重复事件
//   - 就诊日期与时段按医院所在时区解释
//   - 已取消的预约保留并标记 CANCELLED
// ─────────────────────────────────────────────────────────────

const (
	calendarProductID = "-//SmartOPD//Bookings//EN"
	hospitalTimezone  = "Asia/Kolkata"
	visitDuration     = 30 * time.Minute
)

// BuildBookingCalendar 生成预约日历
func BuildBookingCalendar(bookings []model.Booking, stamp time.Time) (string, error) {
	loc, err := time.LoadLocation(hospitalTimezone)
	if err != nil {
		loc = time.UTC
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName("SmartOPD Appointments")

	for i := range bookings {
		b := &bookings[i]

		start, err := time.ParseInLocation(model.ISODate+" 15:04", b.AppointmentDate+" "+b.AppointmentTime, loc)
		if err != nil {
			return "", fmt.Errorf("预约 %s 的就诊时间无效: %w", b.BookingID, err)
		}

		event := cal.AddEvent(b.BookingID + "@smartopd")
		event.SetDtStampTime(stamp)
		event.SetCreatedTime(b.CreatedAt)
		event.SetStartAt(start)
		event.SetEndAt(start.Add(visitDuration))
		event.SetSummary(fmt.Sprintf("OPD appointment with Dr. %s", displayName(b.DoctorName, "Unknown Doctor")))
		event.SetDescription(fmt.Sprintf("Patient: %s", displayName(b.PatientName, "Unknown Patient")))
		if b.Status == model.BookingCancelled {
			event.SetStatus(ics.ObjectStatusCancelled)
		} else {
			event.SetStatus(ics.ObjectStatusConfirmed)
		}
	}

	return cal.Serialize(), nil
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
