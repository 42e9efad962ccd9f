package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProduct возвращается, если товар из каталога нарушает инварианты позиции корзины.
	ErrInvalidProduct = errors.New("product must have an id and a positive price")
	// ErrCorruptCart сигнализирует о нечитаемом или противоречивом сохранённом состоянии корзины.
	ErrCorruptCart = errors.New("persisted cart is corrupt")
	// Ошибка отсутствующего имени покупателя.
	ErrFullNameRequired = errors.New("full name is required")
	// Ошибка отсутствующего email покупателя.
	ErrEmailRequired = errors.New("email is required")
	// Ошибка отсутствующего адреса доставки.
	ErrAddressRequired = errors.New("address is required")
	// Ошибка отсутствующего города доставки.
	ErrCityRequired = errors.New("city is required")
	// Ошибка отсутствующего почтового индекса.
	ErrZipCodeRequired = errors.New("zip code is required")
	// Ошибка неизвестного способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method must be cod or card")
	// ErrSubmissionInProgress возвращается при попытке повторной отправки, пока предыдущая не завершилась.
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	// ErrOrderNotFound возвращается, если заказа нет в локальной коллекции или на сервере.
	ErrOrderNotFound = errors.New("order not found")
	// ErrIllegalTransition возвращается, если переход статуса запрещён таблицей переходов.
	ErrIllegalTransition = errors.New("illegal order status transition")
	// ErrUnknownStatus возвращается для статуса вне {pending, delivered, cancelled}.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrDeletionDeclined — администратор не подтвердил удаление заказа.
	ErrDeletionDeclined = errors.New("order deletion was not confirmed")
	// ErrSessionClosed возвращается операциями, вызванными после завершения сессии.
	ErrSessionClosed = errors.New("session is closed")
)

// RemoteError описывает отказ внешнего Order/Catalog Service.
type RemoteError struct {
	// Op — логическое имя операции, например "place order".
	Op string
	// StatusCode — HTTP-код ответа; 0 для сетевых ошибок.
	StatusCode int
	// Detail — человекочитаемое сообщение сервера (поле detail), если оно было.
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: remote status %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: remote status %d", e.Op, e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// RemoteDetail возвращает серверное сообщение из цепочки ошибок, если оно есть.
func RemoteDetail(err error) (string, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Detail != "" {
		return remote.Detail, true
	}
	return "", false
}

// IsNotFound проверяет, относится ли ошибка к отсутствующему заказу (локально или на сервере).
func IsNotFound(err error) bool {
	if errors.Is(err, ErrOrderNotFound) {
		return true
	}
	var remote *RemoteError
	return errors.As(err, &remote) && remote.StatusCode == 404
}
