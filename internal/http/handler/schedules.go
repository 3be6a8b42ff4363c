package handler

import (
	"github.com/gofiber/fiber/v2"

	"protonmc/internal/model"
	"protonmc/internal/service"
)

// ListSchedules answers the server's schedules ordered by next run.
func ListSchedules(svc service.ScheduleService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.List(c.UserContext(), c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if items == nil {
			items = []model.Schedule{}
		}
		return c.JSON(items)
	}
}

// CreateSchedule godoc
// @Summary      Schedule a start, stop, restart or backup
// @Tags         schedules
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Security     BearerAuth
// @Param        server     path      string  true   "Server name"
// @Param        action     formData  string  true   "start, stop, restart or backup"
// @Param        time       formData  string  true   "HH:MM in the panel timezone"
// @Param        frequency  formData  string  false  "daily (default) or once"
// @Success      201  {object}  model.Schedule
// @Failure      400  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/schedules [post]
func CreateSchedule(svc service.ScheduleService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		item, err := svc.Create(c.UserContext(), c.Params(serverParam), service.CreateScheduleInput{
			Action:    c.FormValue("action"),
			Time:      c.FormValue("time"),
			Frequency: c.FormValue("frequency"),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// DeleteSchedule removes one schedule.
func DeleteSchedule(svc service.ScheduleService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params(serverParam), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
