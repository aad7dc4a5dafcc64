package controller

import (
	"ai-tutoring-engine/internal/dto"
	"ai-tutoring-engine/internal/mapper"
	"ai-tutoring-engine/internal/pkg/serverutils"
	"ai-tutoring-engine/internal/repository/memory"
	"ai-tutoring-engine/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITutorController interface {
	RegisterRoutes(r fiber.Router)
	GetCatalog(ctx *fiber.Ctx) error
	RefreshCatalog(ctx *fiber.Ctx) error
	SetView(ctx *fiber.Ctx) error
	SelectSession(ctx *fiber.Ctx) error
	CreateFresh(ctx *fiber.Ctx) error
	CreateFromTemplate(ctx *fiber.Ctx) error
	GetState(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	Reanalyze(ctx *fiber.Ctx) error
	SetDraft(ctx *fiber.Ctx) error
	Reconnect(ctx *fiber.Ctx) error
}

type tutorController struct {
	service   service.ITutorService
	mapper    *mapper.TutorMapper
	jwtSecret string
}

func NewTutorController(service service.ITutorService, jwtSecret string) ITutorController {
	return &tutorController{
		service:   service,
		mapper:    mapper.NewTutorMapper(),
		jwtSecret: jwtSecret,
	}
}

func (c *tutorController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/tutor/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))

	h.Get("catalog", c.GetCatalog)
	h.Post("catalog/refresh", c.RefreshCatalog)
	h.Put("catalog/view", c.SetView)

	h.Post("sessions", c.CreateFresh)
	h.Post("sessions/:id/select", c.SelectSession)
	h.Post("templates/:id/sessions", c.CreateFromTemplate)

	h.Get("state", c.GetState)
	h.Post("messages", c.SendMessage)
	h.Post("reanalyze", c.Reanalyze)
	h.Put("draft", c.SetDraft)
	h.Post("reconnect", c.Reconnect)
}

func (c *tutorController) GetCatalog(ctx *fiber.Ctx) error {
	cat := c.service.Catalog()
	res := c.mapper.CatalogToDTO(string(cat.View), cat.History, cat.Latest)
	return ctx.JSON(serverutils.SuccessResponse("Success get catalog", res))
}

func (c *tutorController) RefreshCatalog(ctx *fiber.Ctx) error {
	if err := c.service.RefreshCatalog(ctx.UserContext()); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "Session list is temporarily unavailable")
	}
	return c.GetCatalog(ctx)
}

func (c *tutorController) SetView(ctx *fiber.Ctx) error {
	var req dto.ViewRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	c.service.SetView(memory.View(req.View))
	return c.GetCatalog(ctx)
}

func (c *tutorController) SelectSession(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}

	if err := c.service.SelectHistory(ctx.UserContext(), int64(id)); err != nil {
		return err
	}
	return c.GetState(ctx)
}

func (c *tutorController) CreateFresh(ctx *fiber.Ctx) error {
	if err := c.service.CreateFresh(ctx.UserContext()); err != nil {
		return err
	}
	return c.GetState(ctx)
}

func (c *tutorController) CreateFromTemplate(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid template id")
	}

	if err := c.service.CreateFromTemplate(ctx.UserContext(), int64(id)); err != nil {
		return err
	}
	return c.GetState(ctx)
}

func (c *tutorController) GetState(ctx *fiber.Ctx) error {
	res := c.mapper.SnapshotToDTO(c.service.Snapshot(), string(c.service.ConnectionState()))
	return ctx.JSON(serverutils.SuccessResponse("Success get state", res))
}

func (c *tutorController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// A gated send is not an error; the state tells the UI why.
	if !c.service.Send(ctx.UserContext(), req.Text) {
		ctx.Status(fiber.StatusAccepted)
	}
	return c.GetState(ctx)
}

func (c *tutorController) Reanalyze(ctx *fiber.Ctx) error {
	if !c.service.Reanalyze(ctx.UserContext()) {
		ctx.Status(fiber.StatusAccepted)
	}
	return c.GetState(ctx)
}

func (c *tutorController) SetDraft(ctx *fiber.Ctx) error {
	var req dto.DraftRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	c.service.SetDraft(req.Text)
	return c.GetState(ctx)
}

func (c *tutorController) Reconnect(ctx *fiber.Ctx) error {
	if err := c.service.Reconnect(ctx.UserContext()); err != nil {
		return err
	}
	return c.GetState(ctx)
}
