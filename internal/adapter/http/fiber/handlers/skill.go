package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/skill"
)

// SkillHandler exposes every registered skill at POST /skills/:name.
type SkillHandler struct {
	skills map[string]*skill.Skill
	log    *zap.Logger
}

func NewSkillHandler(log *zap.Logger, skills ...*skill.Skill) *SkillHandler {
	h := &SkillHandler{
		skills: make(map[string]*skill.Skill, len(skills)),
		log:    log,
	}
	for _, s := range skills {
		h.skills[s.Name()] = s
	}
	return h
}

func (h *SkillHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/skills/:name", h.Invoke)
}

// Invoke answers one platform request. Any body that reaches a skill gets a
// 200 with a response envelope; only an unknown skill or a foreign skill id
// is refused at the HTTP level.
func (h *SkillHandler) Invoke(c *fiber.Ctx) error {
	name := c.Params("name")
	s, ok := h.skills[name]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown skill: "+name)
	}

	env, err := skill.Decode(c.Body())
	if err != nil {
		h.log.Warn("Malformed skill request",
			zap.String("skill", name),
			zap.Error(err),
		)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(s.Handle(c.UserContext(), c.Body()))
	}

	if err := s.VerifySkillID(env); err != nil {
		h.log.Warn("Rejected request for another skill",
			zap.String("skill", name),
			zap.Error(err),
		)
		if errors.Is(err, skill.ErrSkillIDMismatch) {
			return fiber.NewError(fiber.StatusForbidden, "skill id mismatch")
		}
		return err
	}

	resp := s.Invoke(c.UserContext(), env)
	return c.JSON(resp)
}
