package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/core/school"
)

type notificationApi struct {
	svc        *notification.Service
	schoolRepo school.Repository
	validate   *validator.Validate
	logger     core.Logger
}

func registerNotificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *notification.Service,
	schoolRepo school.Repository,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := notificationApi{
		svc:        svc,
		schoolRepo: schoolRepo,
		validate:   validate,
		logger:     logger,
	}

	// inbox of the authenticated user
	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.DELETE("", api.destroyMultiple)
	ng.DELETE("/:id", api.destroy)

	// hooks called by the task and grading pages
	eg := g.Group("/events", jwt, staffMiddleware())
	eg.POST("/task-created", api.taskCreated)
	eg.POST("/task-updated", api.taskUpdated)
	eg.POST("/grade-sent", api.gradeSent)
}

// Inbox

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.schoolRepo)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter InboxFilter
	filter.Bind(ctx)

	notifs, err := api.svc.List(ctx.Request().Context(), usr.ID, filter.ClassID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.schoolRepo)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter InboxFilter
	filter.Bind(ctx)

	count, err := api.svc.UnreadCount(ctx.Request().Context(), usr.ID, filter.ClassID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.schoolRepo)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter InboxFilter
	filter.Bind(ctx)

	count, err := api.svc.MarkAllRead(ctx.Request().Context(), usr.ID, filter.ClassID)
	if err != nil {
		return errors.Wrap(err, "marking notifications as read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.schoolRepo)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), usr.ID); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	usr, err := getContextUser(ctx, api.schoolRepo)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if _, err = api.svc.DeleteMany(ctx.Request().Context(), query.IDs, usr.ID); err != nil {
		return errors.Wrap(err, "deleting notifications")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Events

func (api *notificationApi) taskCreated(ctx echo.Context) error {
	return api.taskEvent(ctx, notification.KindTaskCreated, api.svc.OnTaskCreated)
}

func (api *notificationApi) taskUpdated(ctx echo.Context) error {
	return api.taskEvent(ctx, notification.KindTaskUpdated, api.svc.OnTaskUpdated)
}

type taskEventHandler func(ctx context.Context, ev notification.TaskEvent) (notification.Outcome, error)

func (api *notificationApi) taskEvent(ctx echo.Context, kind notification.Kind, handle taskEventHandler) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data TaskEventRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TaskEventRequest")
	}
	if err = data.Validate(api.validate, claims); err != nil {
		return err
	}

	out, err := handle(ctx.Request().Context(), data.Event())
	return api.accepted(ctx, kind, out, err)
}

func (api *notificationApi) gradeSent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data GradeEventRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeEventRequest")
	}
	if err = data.Validate(api.validate, claims); err != nil {
		return err
	}

	out, err := api.svc.OnGradeSent(ctx.Request().Context(), data.Event())
	return api.accepted(ctx, notification.KindGradeSent, out, err)
}

// accepted answers 202 whatever happened: notification errors never fail the caller's action.
func (api *notificationApi) accepted(ctx echo.Context, kind notification.Kind, out notification.Outcome, err error) error {
	resp := EventResponse{Outcome: out}
	if err != nil {
		resp.Error = errors.Cause(err).Error()
		api.logger.Warn(fmt.Sprintf("%s event: %v", kind, err), err)
	}
	return ctx.JSON(http.StatusAccepted, resp)
}
