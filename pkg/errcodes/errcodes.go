package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	Forbidden           failure.ErrorCode = "Forbidden"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"
	InvalidDealID       failure.ErrorCode = "InvalidDealID"
	InvalidOwnerID      failure.ErrorCode = "InvalidOwnerID"

	// Ценообразование
	InvalidTerm       failure.ErrorCode = "InvalidTerm"       // Срок опциона вне [min, max]
	NoAcceptableItems failure.ErrorCode = "NoAcceptableItems" // Все предметы ниже минимальной цены

	// Жизненный цикл сделки
	QuoteMismatch       failure.ErrorCode = "QuoteMismatch"       // Пересчитанная котировка не совпала с клиентской
	DealNotFound        failure.ErrorCode = "DealNotFound"        // Сделки нет в хранилище
	TradeNotFound       failure.ErrorCode = "TradeNotFound"       // Трейда с таким offer id нет
	InvalidTransition   failure.ErrorCode = "InvalidTransition"   // Событие не применимо к текущему статусу
	OwnerNotVerified    failure.ErrorCode = "OwnerNotVerified"    // Владелец не подтвердил личность
	KYCRequired         failure.ErrorCode = "KYCRequired"         // Для суммы нужен паспорт
	UpstreamUnavailable failure.ErrorCode = "UpstreamUnavailable" // Платёжный шлюз, выплаты или торговый агент недоступны
)
