// Package mentorship содержит доменную модель наставничества и продвижения по рангам.
//
// Это ядро симуляции "lineage". Пакет определяет:
//
//   - Сущность Practitioner: имя, категория, ранг, квалификация, текущие и бывшие ученики
//   - Engine: операции, изменяющие состояние (квалификация, повышение, назначение, выпуск)
//   - Порты: Dice (источник случайности), Registry (поиск по имени)
//
// # Правила
//
// Лестница рангов задаётся пакетом ladder. Engine лишь применяет её правила:
//
//  1. Квалификацию сдаёт только ученик низшего ранга; шанс 1 из 10 за попытку
//  2. Наставником может быть только тот, кто выше низшего ранга
//  3. Учеником может стать только практикующий низшего ранга, и только у одного наставника
//  4. Выпуск атомарен: либо ранг повышен и ученик переведён в бывшие, либо ничего не изменилось
//
// # Ошибки
//
// Нарушение правила - это мягкий отказ: операция ничего не меняет, сообщает
// причину в Sink и возвращает одну из ошибок ErrAlreadySatisfied, ErrNotEligible,
// ErrAtTerminalRank, ErrInvalidCandidateRank, ErrInsufficientMentorRank,
// ErrUnknownApprentice. Фатальных состояний нет: после любой операции
// симуляцию можно продолжать.
//
// # Пример
//
//	engine := NewEngine(sink, dice, WithRegistry(registry))
//
//	if err := engine.Assign(ctx, mentor, apprentice); err != nil {
//	    return err
//	}
//	for !apprentice.HasQualified() {
//	    engine.AttemptQualification(ctx, apprentice)
//	}
//	newRank, err := engine.Graduate(ctx, mentor, apprentice)
//
// Engine не потокобезопасен: граф практикующих принадлежит одному контексту исполнения.
package mentorship
