package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"storefront/internal/apperrors"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/pkg/images"
)

// StoreHandler handles HTTP requests for store listings, search, favorites
// and the reporting views.
type StoreHandler struct {
	storeService *services.StoreService
	photos       *images.Processor
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(storeService *services.StoreService, photos *images.Processor) *StoreHandler {
	return &StoreHandler{
		storeService: storeService,
		photos:       photos,
	}
}

// RegisterRoutes registers the store routes with the Fiber app. Routes that
// mutate state or expose user-specific data run behind authRequired.
func (h *StoreHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	router.Get("/stores", h.HandleListStores)
	router.Get("/stores/page/:page", h.HandleListStores)
	router.Post("/stores", authRequired, h.HandleCreateStore)
	router.Get("/store/:slug", h.HandleGetStoreBySlug)
	router.Get("/stores/:id/edit", authRequired, h.HandleEditStore)
	router.Post("/stores/:id", authRequired, h.HandleUpdateStore)
	router.Get("/tags", h.HandleTags)
	router.Get("/tags/:tag", h.HandleTags)
	router.Get("/top", h.HandleTopStores)
	router.Get("/hearts", authRequired, h.HandleHeartedStores)
	router.Post("/reviews/:storeID", authRequired, h.HandleAddReview)

	router.Get("/api/search", h.HandleSearch)
	router.Get("/api/stores/near", h.HandleNear)
	router.Post("/api/stores/:id/heart", authRequired, h.HandleToggleHeart)
}

// HandleCreateStore creates a store owned by the requester, attaching an
// uploaded photo when present.
func (h *StoreHandler) HandleCreateStore(c *fiber.Ctx) error {
	store, err := h.parseStoreForm(c)
	if err != nil {
		return respondError(c, err)
	}

	if photo, err := h.attachPhoto(c); err != nil {
		return respondError(c, err)
	} else if photo != "" {
		store.Photo = photo
	}

	created, err := h.storeService.CreateStore(store, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": fmt.Sprintf("Successfully created %s. Care to leave a review?", created.Name),
		"store":   created,
	})
}

// HandleListStores serves one page of the listing. Requests past the last
// page redirect to it.
func (h *StoreHandler) HandleListStores(c *fiber.Ctx) error {
	page, err := strconv.Atoi(c.Params("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	result, err := h.storeService.ListStores(page)
	if err != nil {
		return respondError(c, err)
	}
	if len(result.Stores) == 0 && result.Page > 1 && result.Count > 0 {
		return c.Redirect(fmt.Sprintf("/stores/page/%d", result.Pages), fiber.StatusSeeOther)
	}
	return c.JSON(result)
}

// HandleGetStoreBySlug serves a single store with author and reviews.
func (h *StoreHandler) HandleGetStoreBySlug(c *fiber.Ctx) error {
	store, err := h.storeService.GetStoreBySlug(c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(store)
}

// HandleEditStore serves the store for the edit form, owners only.
func (h *StoreHandler) HandleEditStore(c *fiber.Ctx) error {
	store, err := h.storeService.GetStoreForEdit(c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(store)
}

// HandleUpdateStore applies a partial update to a store, owners only.
func (h *StoreHandler) HandleUpdateStore(c *fiber.Ctx) error {
	update, err := h.parseUpdateForm(c)
	if err != nil {
		return respondError(c, err)
	}

	if photo, err := h.attachPhoto(c); err != nil {
		return respondError(c, err)
	} else if photo != "" {
		update.Photo = &photo
	}

	store, err := h.storeService.UpdateStore(c.Params("id"), *update, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Successfully updated %s.", store.Name),
		"store":   store,
	})
}

// HandleTags serves the tag-frequency report, optionally filtered to one tag.
func (h *StoreHandler) HandleTags(c *fiber.Ctx) error {
	page, err := h.storeService.StoresByTag(c.Context(), c.Params("tag"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// HandleTopStores serves the top-rated-stores report.
func (h *StoreHandler) HandleTopStores(c *fiber.Ctx) error {
	top, err := h.storeService.TopStores(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"stores": top})
}

// HandleSearch serves the typeahead text search.
func (h *StoreHandler) HandleSearch(c *fiber.Ctx) error {
	stores, err := h.storeService.SearchStores(c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stores)
}

// HandleNear serves stores within 10 km of the given point.
func (h *StoreHandler) HandleNear(c *fiber.Ctx) error {
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	if lngErr != nil || latErr != nil {
		return respondError(c, apperrors.NewValidationError(map[string]string{
			"lng": "lng and lat must be numbers",
		}))
	}
	stores, err := h.storeService.NearStores(lng, lat)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stores)
}

// HandleToggleHeart flips the requester's favorite mark on a store.
func (h *StoreHandler) HandleToggleHeart(c *fiber.Ctx) error {
	user, err := h.storeService.ToggleHeart(middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleHeartedStores serves the requester's favorited stores.
func (h *StoreHandler) HandleHeartedStores(c *fiber.Ctx) error {
	stores, err := h.storeService.HeartedStores(middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"stores": stores})
}

// HandleAddReview records a review on a store by the requester.
func (h *StoreHandler) HandleAddReview(c *fiber.Ctx) error {
	var review models.Review
	if err := c.BodyParser(&review); err != nil {
		log.Debug().Err(err).Msg("error parsing review body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	review.StoreID = c.Params("storeID")

	created, err := h.storeService.AddReview(&review, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

type storeForm struct {
	Name        string       `json:"name" form:"name"`
	Description string       `json:"description" form:"description"`
	Tags        []string     `json:"tags" form:"tags"`
	Location    locationForm `json:"location"`

	// Flat aliases used by the multipart form.
	Address string `json:"-" form:"address"`
	Lng     string `json:"-" form:"lng"`
	Lat     string `json:"-" form:"lat"`
}

// locationForm keeps lng/lat as pointers so an absent coordinate is
// distinguishable from an explicit zero.
type locationForm struct {
	Lng     *float64 `json:"lng"`
	Lat     *float64 `json:"lat"`
	Address string   `json:"address"`
}

// parseStoreForm accepts either a JSON body with a nested location object or
// a (multipart) form with flat address/lng/lat fields.
func (h *StoreHandler) parseStoreForm(c *fiber.Ctx) (*models.Store, error) {
	var form storeForm
	if err := c.BodyParser(&form); err != nil {
		log.Debug().Err(err).Msg("error parsing store body")
		return nil, apperrors.NewValidationError(map[string]string{"body": "invalid request body"})
	}

	store := &models.Store{
		Name:        form.Name,
		Description: form.Description,
		Tags:        form.Tags,
	}
	store.Location.Address = form.Location.Address
	if form.Address != "" {
		store.Location.Address = form.Address
	}

	if (form.Location.Lng == nil) != (form.Location.Lat == nil) {
		return nil, errPartialCoordinates
	}
	if form.Location.Lng != nil {
		store.Location.Lng = *form.Location.Lng
		store.Location.Lat = *form.Location.Lat
	}
	if (form.Lng == "") != (form.Lat == "") {
		return nil, errPartialCoordinates
	}
	if err := mergeCoordinate(&store.Location.Lng, form.Lng, "lng"); err != nil {
		return nil, err
	}
	if err := mergeCoordinate(&store.Location.Lat, form.Lat, "lat"); err != nil {
		return nil, err
	}
	return store, nil
}

// parseUpdateForm builds the partial update, leaving absent fields nil.
func (h *StoreHandler) parseUpdateForm(c *fiber.Ctx) (*services.StoreUpdate, error) {
	contentType := string(c.Request().Header.ContentType())
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return parseMultipartUpdate(c)
	}

	var update services.StoreUpdate
	if err := c.BodyParser(&update); err != nil {
		log.Debug().Err(err).Msg("error parsing store update body")
		return nil, apperrors.NewValidationError(map[string]string{"body": "invalid request body"})
	}
	return &update, nil
}

func parseMultipartUpdate(c *fiber.Ctx) (*services.StoreUpdate, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.NewValidationError(map[string]string{"body": "invalid multipart form"})
	}

	var update services.StoreUpdate
	if v := formValue(form, "name"); v != nil {
		update.Name = v
	}
	if v := formValue(form, "description"); v != nil {
		update.Description = v
	}
	if tags, ok := form.Value["tags"]; ok {
		update.Tags = &tags
	}
	if address := formValue(form, "address"); address != nil {
		loc := models.Location{Address: *address}
		lng, lat := formValue(form, "lng"), formValue(form, "lat")
		if (lng == nil) != (lat == nil) {
			return nil, errPartialCoordinates
		}
		if lng != nil {
			if err := mergeCoordinate(&loc.Lng, *lng, "lng"); err != nil {
				return nil, err
			}
			if err := mergeCoordinate(&loc.Lat, *lat, "lat"); err != nil {
				return nil, err
			}
		}
		update.Location = &loc
	}
	return &update, nil
}

func formValue(form *multipart.Form, key string) *string {
	if vs, ok := form.Value[key]; ok && len(vs) > 0 {
		return &vs[0]
	}
	return nil
}

var errPartialCoordinates = apperrors.NewValidationError(map[string]string{
	"location.coordinates": "lng and lat must be supplied together",
})

func mergeCoordinate(dst *float64, raw, field string) error {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return apperrors.NewValidationError(map[string]string{field: "must be a number"})
	}
	*dst = v
	return nil
}

// attachPhoto processes an uploaded photo when present and returns the
// stored filename. Missing upload is a no-op.
func (h *StoreHandler) attachPhoto(c *fiber.Ctx) (string, error) {
	file, err := c.FormFile("photo")
	if err != nil {
		return "", nil
	}
	name, err := h.photos.Process(file)
	if err != nil {
		if errors.Is(err, images.ErrUnsupportedType) {
			return "", apperrors.NewValidationError(map[string]string{"photo": err.Error()})
		}
		return "", err
	}
	return name, nil
}
