package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/kyc-ml/internal/auth"
	"github.com/example/kyc-ml/internal/faceengine"
	"github.com/example/kyc-ml/internal/usecase"
	"github.com/example/kyc-ml/internal/vision"
)

// MaxUploadSize caps individual image uploads.
const MaxUploadSize = 10 << 20

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

type verifyResponse struct {
	RequestID string `json:"request_id"`
	usecase.VerificationResult
}

type extractResponse struct {
	RequestID string `json:"request_id"`
	usecase.ExtractionResult
}

type livenessResponse struct {
	RequestID string `json:"request_id"`
	usecase.LivenessResult
}

// RegisterRoutes wires the HTTP handlers to the Gin router. The result and
// metrics endpoints are protected by authMiddleware.
func RegisterRoutes(router *gin.Engine, uc *usecase.ChecksUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "KYC ML Service is running"})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "ml-service",
			"version": ServiceVersion,
		})
	})

	router.POST("/api/verify-face", func(c *gin.Context) {
		livePhoto, ok := readImagePart(c, "live_photo")
		if !ok {
			return
		}
		documentPhoto, ok := readImagePart(c, "document_photo")
		if !ok {
			return
		}

		requestID, result, err := uc.VerifyFaces(c.Request.Context(), livePhoto, documentPhoto)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, verifyResponse{RequestID: requestID, VerificationResult: *result})
	})

	router.POST("/api/extract-face", func(c *gin.Context) {
		document, ok := readImagePart(c, "document")
		if !ok {
			return
		}

		requestID, result, err := uc.ExtractFace(c.Request.Context(), document)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, extractResponse{RequestID: requestID, ExtractionResult: *result})
	})

	router.POST("/api/detect-liveness", func(c *gin.Context) {
		photo, ok := readImagePart(c, "photo")
		if !ok {
			return
		}

		requestID, result, err := uc.DetectLiveness(c.Request.Context(), photo)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, livenessResponse{RequestID: requestID, LivenessResult: *result})
	})

	authorized := router.Group("/api", authMiddleware)

	authorized.GET("/results/:id", func(c *gin.Context) {
		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		log, err := uc.GetResult(c.Request.Context(), requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		response := gin.H{
			"request_id": log.RequestID,
			"kind":       log.Kind,
			"success":    log.Success,
			"confidence": log.Confidence,
			"distance":   log.Distance,
			"face_count": log.FaceCount,
			"details":    log.Details,
			"created_at": log.CreatedAt,
		}
		if subject, ok := auth.GetSubject(c.Request.Context()); ok {
			response["requested_by"] = subject
		}
		c.JSON(http.StatusOK, response)
	})

	authorized.GET("/metrics", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// readImagePart validates and reads one multipart image upload. It writes
// the error response itself and reports success through the bool.
func readImagePart(c *gin.Context, field string) ([]byte, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, false
	}

	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": field + " exceeds the upload size limit"})
		return nil, false
	}

	contentType := file.Header.Get("Content-Type")
	if _, ok := allowedImageTypes[contentType]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type. Only JPEG and PNG are allowed."})
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open " + field})
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + field})
		return nil, false
	}
	return data, true
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, faceengine.ErrNoFace), errors.Is(err, vision.ErrNoFace):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No face detected"})
	case errors.Is(err, vision.ErrUnreadableImage), errors.Is(err, faceengine.ErrUnreadableImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or unreadable image"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "detail": err.Error()})
	}
}
