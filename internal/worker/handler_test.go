package worker_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"staging-server/internal/messaging"
	messagingmocks "staging-server/internal/messaging/mocks"
	"staging-server/internal/models"
	"staging-server/internal/provider"
	providermocks "staging-server/internal/provider/mocks"
	storagemocks "staging-server/internal/storage/mocks"
	"staging-server/internal/worker"
)

func newDelivery(t *testing.T, payload interface{}) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	return amqp091.Delivery{Body: body, CorrelationId: "corr-1"}
}

func testTask() messaging.EditTaskPayload {
	return messaging.EditTaskPayload{
		TaskID:      uuid.NewString(),
		ImageID:     uuid.New(),
		RootID:      uuid.New(),
		ProjectID:   uuid.New(),
		UserID:      uuid.New(),
		SourceImage: "https://cdn.example.com/source.jpg",
		MaskPNG:     []byte{1, 2, 3},
		Instruction: "Remove the old sofa and realistically fill in the background.",
		Mode:        models.EditModeRemove,
	}
}

func TestHandleDelivery_Success(t *testing.T) {
	providerClient := new(providermocks.Client)
	store := new(storagemocks.Store)
	publisher := new(messagingmocks.Publisher)
	h := worker.NewHandler(zap.NewNop(), providerClient, store, publisher, "http://pushgateway:9091")

	task := testTask()
	edited := &provider.EditResult{Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"}

	providerClient.On("EditImage", mock.Anything, provider.EditRequest{
		SourceImageURL: task.SourceImage,
		MaskPNG:        task.MaskPNG,
		Instruction:    task.Instruction,
	}).Return(edited, nil)
	store.On("Save", mock.Anything, edited.Data, mock.AnythingOfType("string")).
		Return("https://cdn.example.com/edited.jpg", nil)

	var published messaging.EditResultPayload
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("messaging.EditResultPayload"), "corr-1").
		Run(func(args mock.Arguments) {
			published = args.Get(1).(messaging.EditResultPayload)
		}).Return(nil)

	ack := h.HandleDelivery(t.Context(), newDelivery(t, task))
	assert.True(t, ack)

	assert.True(t, published.Success)
	assert.Equal(t, task.TaskID, published.TaskID)
	assert.Equal(t, task.ImageID, published.ImageID)
	assert.NotNil(t, published.ResultURL)
	assert.Equal(t, "https://cdn.example.com/edited.jpg", *published.ResultURL)
	assert.Nil(t, published.ErrorMessage)
	store.AssertNotCalled(t, "SaveThumbnail")
}

func TestHandleDelivery_ThumbnailForFirstVersion(t *testing.T) {
	providerClient := new(providermocks.Client)
	store := new(storagemocks.Store)
	publisher := new(messagingmocks.Publisher)
	h := worker.NewHandler(zap.NewNop(), providerClient, store, publisher, "http://pushgateway:9091")

	task := testTask()
	task.SetProjectThumbnail = true
	edited := &provider.EditResult{Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"}

	providerClient.On("EditImage", mock.Anything, mock.AnythingOfType("provider.EditRequest")).Return(edited, nil)
	store.On("Save", mock.Anything, edited.Data, mock.AnythingOfType("string")).
		Return("https://cdn.example.com/edited.jpg", nil)
	store.On("SaveThumbnail", mock.Anything, edited.Data, mock.AnythingOfType("string")).
		Return("https://cdn.example.com/thumb.jpg", nil)

	var published messaging.EditResultPayload
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("messaging.EditResultPayload"), "corr-1").
		Run(func(args mock.Arguments) {
			published = args.Get(1).(messaging.EditResultPayload)
		}).Return(nil)

	ack := h.HandleDelivery(t.Context(), newDelivery(t, task))
	assert.True(t, ack)
	assert.NotNil(t, published.ThumbnailURL)
	assert.Equal(t, "https://cdn.example.com/thumb.jpg", *published.ThumbnailURL)
}

func TestHandleDelivery_ProviderFailurePublishesError(t *testing.T) {
	providerClient := new(providermocks.Client)
	store := new(storagemocks.Store)
	publisher := new(messagingmocks.Publisher)
	h := worker.NewHandler(zap.NewNop(), providerClient, store, publisher, "http://pushgateway:9091")

	task := testTask()
	providerClient.On("EditImage", mock.Anything, mock.AnythingOfType("provider.EditRequest")).
		Return(nil, errors.New("inpainting provider request failed: status 503"))

	var published messaging.EditResultPayload
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("messaging.EditResultPayload"), "corr-1").
		Run(func(args mock.Arguments) {
			published = args.Get(1).(messaging.EditResultPayload)
		}).Return(nil)

	ack := h.HandleDelivery(t.Context(), newDelivery(t, task))
	assert.True(t, ack, "failure result must still be acked after publishing")

	assert.False(t, published.Success)
	assert.NotNil(t, published.ErrorMessage)
	assert.Contains(t, *published.ErrorMessage, "status 503")
	// Хранилище не трогается, если провайдер не вернул изображение
	store.AssertNotCalled(t, "Save")
}

func TestHandleDelivery_SaveFailurePublishesError(t *testing.T) {
	providerClient := new(providermocks.Client)
	store := new(storagemocks.Store)
	publisher := new(messagingmocks.Publisher)
	h := worker.NewHandler(zap.NewNop(), providerClient, store, publisher, "http://pushgateway:9091")

	task := testTask()
	edited := &provider.EditResult{Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"}
	providerClient.On("EditImage", mock.Anything, mock.AnythingOfType("provider.EditRequest")).Return(edited, nil)
	store.On("Save", mock.Anything, edited.Data, mock.AnythingOfType("string")).
		Return("", errors.New("image store failed: disk full"))

	var published messaging.EditResultPayload
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("messaging.EditResultPayload"), "corr-1").
		Run(func(args mock.Arguments) {
			published = args.Get(1).(messaging.EditResultPayload)
		}).Return(nil)

	ack := h.HandleDelivery(t.Context(), newDelivery(t, task))
	assert.True(t, ack)
	assert.False(t, published.Success)
	assert.NotNil(t, published.ErrorMessage)
}

func TestHandleDelivery_MalformedPayloadNacked(t *testing.T) {
	providerClient := new(providermocks.Client)
	store := new(storagemocks.Store)
	publisher := new(messagingmocks.Publisher)
	h := worker.NewHandler(zap.NewNop(), providerClient, store, publisher, "http://pushgateway:9091")

	ack := h.HandleDelivery(t.Context(), amqp091.Delivery{Body: []byte("{not json")})
	assert.False(t, ack)
	publisher.AssertNotCalled(t, "Publish")
}

func TestHandleDelivery_PublishFailureNacked(t *testing.T) {
	providerClient := new(providermocks.Client)
	store := new(storagemocks.Store)
	publisher := new(messagingmocks.Publisher)
	h := worker.NewHandler(zap.NewNop(), providerClient, store, publisher, "http://pushgateway:9091")

	task := testTask()
	edited := &provider.EditResult{Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"}
	providerClient.On("EditImage", mock.Anything, mock.AnythingOfType("provider.EditRequest")).Return(edited, nil)
	store.On("Save", mock.Anything, edited.Data, mock.AnythingOfType("string")).
		Return("https://cdn.example.com/edited.jpg", nil)
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("messaging.EditResultPayload"), "corr-1").
		Return(errors.New("channel closed"))

	ack := h.HandleDelivery(t.Context(), newDelivery(t, task))
	assert.False(t, ack, "undeliverable result must be redelivered")
}
