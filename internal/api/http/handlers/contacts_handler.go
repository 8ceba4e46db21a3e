package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/contacts-service/internal/api/dto"
	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/repository"
	"github.com/spec-kit/contacts-service/internal/service"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

// ContactsHandler manages the caller's contacts.
type ContactsHandler struct {
	contacts *service.ContactService
}

// NewContactsHandler constructs handler.
func NewContactsHandler(contactService *service.ContactService) *ContactsHandler {
	return &ContactsHandler{contacts: contactService}
}

// List GET /contacts?skip=&limit=.
func (h *ContactsHandler) List(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	contacts, err := h.contacts.List(c.UserContext(), user.ID, c.QueryInt("skip", 0), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactListResponse(contacts))
}

// Birthdays GET /contacts/birthdays.
func (h *ContactsHandler) Birthdays(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	contacts, err := h.contacts.UpcomingBirthdays(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactListResponse(contacts))
}

// Search GET /contacts/search?first_name=&last_name=&email=.
func (h *ContactsHandler) Search(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	filter := repository.ContactFilter{
		FirstName: optionalQuery(c, "first_name"),
		LastName:  optionalQuery(c, "last_name"),
		Email:     optionalQuery(c, "email"),
	}
	contacts, err := h.contacts.Search(c.UserContext(), user.ID, filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactListResponse(contacts))
}

// Get GET /contacts/:id.
func (h *ContactsHandler) Get(c *fiber.Ctx) error {
	user, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	contact, err := h.contacts.Get(c.UserContext(), user.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactResponse(contact))
}

// Create POST /contacts.
func (h *ContactsHandler) Create(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	contact, err := h.contacts.Create(c.UserContext(), user.ID, req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewContactResponse(contact))
}

// Update PUT /contacts/:id.
func (h *ContactsHandler) Update(c *fiber.Ctx) error {
	user, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	var req dto.ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	contact, err := h.contacts.Update(c.UserContext(), user.ID, id, req.Input())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactResponse(contact))
}

// Delete DELETE /contacts/:id.
func (h *ContactsHandler) Delete(c *fiber.Ctx) error {
	user, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	contact, err := h.contacts.Delete(c.UserContext(), user.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactResponse(contact))
}

func caller(c *fiber.Ctx) (*domain.User, error) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("Not authenticated")
	}
	return user, nil
}

// callerAndID treats a malformed id like a missing contact.
func callerAndID(c *fiber.Ctx) (*domain.User, string, error) {
	user, err := caller(c)
	if err != nil {
		return nil, "", err
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", apperrors.NewNotFound(service.MsgContactNotFound)
	}
	return user, id, nil
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	value := c.Query(key)
	if value == "" {
		return nil
	}
	return &value
}
