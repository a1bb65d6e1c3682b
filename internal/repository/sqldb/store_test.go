package sqldb

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
)

func newMockStore(t *testing.T, driver string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, driver)), mock
}

func TestFillSessionCreate_Postgres(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	ctx := context.Background()

	patientID := int64(7)
	dialysate := "2.5"
	volume := 2000.0
	started := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO insolution")+".*"+regexp.QuoteMeta("RETURNING in_id")).
		WithArgs(patientID, dialysate, volume, nil, sqlmock.AnyArg(), nil, "BAG-1").
		WillReturnRows(sqlmock.NewRows([]string{"in_id"}).AddRow(42))

	session := &model.FillSession{
		PatientID:       &patientID,
		Dialysate:       &dialysate,
		VolumeIn:        &volume,
		InStarted:       &started,
		BagSerialNumber: "BAG-1",
	}
	require.NoError(t, store.FillSessions().Create(ctx, session))
	assert.Equal(t, int64(42), session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrainSessionCreate_MySQLUsesLastInsertID(t *testing.T) {
	store, mock := newMockStore(t, "mysql")
	ctx := context.Background()

	volume := 2100.0
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outsolution")).
		WillReturnResult(sqlmock.NewResult(9, 1))

	session := &model.DrainSession{PatientID: 7, VolumeOut: &volume, Color: "clear"}
	require.NoError(t, store.DrainSessions().Create(ctx, session))
	assert.Equal(t, int64(9), session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFillSessionComplete(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	ctx := context.Background()
	query := regexp.QuoteMeta("UPDATE insolution SET in_finished = $1, volume_in = $2 WHERE in_id = $3 AND in_finished IS NULL")

	mock.ExpectExec(query).WithArgs(sqlmock.AnyArg(), 1950.0, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(sqlmock.AnyArg(), 1950.0, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := store.FillSessions().Complete(ctx, 1, time.Now(), 1950)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = store.FillSessions().Complete(ctx, 1, time.Now(), 1950)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientGetByUserID_NotFound(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta("FROM patients")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "user_id", "hospital_number", "address", "situation_status"}))

	_, err := store.Patients().GetByUserID(context.Background(), 99)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientUpdateSituation_NoRows(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE patients SET situation_status = $1 WHERE user_id = $2")).
		WithArgs("InEmergency", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Patients().UpdateSituationByUserID(context.Background(), 5, model.SituationInEmergency)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestPrescriptionLatestByUser_ParsesBags(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	rows := sqlmock.NewRows([]string{
		"prescription_id", "patient_id", "doctor_id", "pd_total_exchanges",
		"pd_bag_counts", "pd_bag_percentages", "modality", "instructions", "created_at",
	}).AddRow(3, 7, nil, 4, `"2,1,1"`, `"1.5%,2.5%,4.25%"`, "CAPD", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("JOIN patients p ON p.patient_id = pr.patient_id")).
		WithArgs(int64(11)).
		WillReturnRows(rows)

	p, err := store.Prescriptions().LatestByUser(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 1}, p.BagCounts)
	assert.Equal(t, []float64{1.5, 2.5, 4.25}, p.BagPercentages)
	assert.Equal(t, 4, p.DailyExchanges())
	assert.Equal(t, map[model.Dialysate]int{
		model.Dialysate150: 2,
		model.Dialysate250: 1,
		model.Dialysate425: 1,
	}, p.Schedule.Prescribed())
}

func TestPatientGet_NotFound(t *testing.T) {
	store, mock := newMockStore(t, "mysql")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE patient_id = ?")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "user_id", "hospital_number", "address", "situation_status"}))

	_, err := store.Patients().Get(context.Background(), 99)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionListByPatient_DateRange(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	dates := model.DateRange{From: from, To: from.AddDate(0, 0, 4)}

	rows := sqlmock.NewRows([]string{
		"prescription_id", "patient_id", "doctor_id", "pd_total_exchanges",
		"pd_bag_counts", "pd_bag_percentages", "modality", "instructions", "created_at",
	}).
		AddRow(5, 7, nil, 4, "2,2", "1.5,2.5", nil, nil, from.AddDate(0, 0, 3)).
		AddRow(4, 7, nil, 4, "4", "1.5", nil, nil, from)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE pr.patient_id = $1 AND pr.created_at >= $2 AND pr.created_at < $3 ORDER BY pr.created_at DESC")).
		WithArgs(int64(7), dates.From, dates.To).
		WillReturnRows(rows)

	prescriptions, err := store.Prescriptions().ListByPatient(context.Background(), 7, &dates)
	require.NoError(t, err)
	require.Len(t, prescriptions, 2)
	assert.Equal(t, []int{2, 2}, prescriptions[0].BagCounts)
	assert.Equal(t, []float64{1.5}, prescriptions[1].BagPercentages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionMedicineListByPatient_JoinsMedicines(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	created := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "prescription_id", "patient_id", "doctor_id", "medicine_id",
		"dosage", "frequency", "duration", "instructions", "created_at", "updated_at",
		"medicine_name", "medicine_form", "medicine_category",
	}).
		AddRow(11, 2, 7, 3, 1, "800mg", "TID", "30 days", nil, created, created, "Sevelamer", "tablet", "phosphate binder").
		AddRow(10, 2, 7, 3, 9, nil, nil, nil, nil, created, created, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN medicines m ON m.medicine_id = pm.medicine_id") + ".*" +
		regexp.QuoteMeta("WHERE pm.patient_id = $1") + ".*" + regexp.QuoteMeta("LIMIT $2")).
		WithArgs(int64(7), 50).
		WillReturnRows(rows)

	medicines, err := store.PrescriptionMedicines().ListByPatient(context.Background(), 7, 50)
	require.NoError(t, err)
	require.Len(t, medicines, 2)
	assert.Equal(t, "Sevelamer", *medicines[0].MedicineName)
	assert.Equal(t, "800mg", *medicines[0].Dosage)
	assert.Nil(t, medicines[1].MedicineName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionMedicineListByPatientIn_OrdersByName(t *testing.T) {
	store, mock := newMockStore(t, "mysql")
	day := model.DayOf(time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC))

	mock.ExpectQuery(regexp.QuoteMeta("AND pm.created_at >= ? AND pm.created_at < ?") + ".*" + regexp.QuoteMeta("ORDER BY m.name, pm.id")).
		WithArgs(int64(7), day.From, day.To).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	medicines, err := store.PrescriptionMedicines().ListByPatientIn(context.Background(), 7, day)
	require.NoError(t, err)
	assert.NotNil(t, medicines)
	assert.Empty(t, medicines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTreatmentTakenByDialysate(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	month := model.MonthOf(time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC))

	rows := sqlmock.NewRows([]string{"dialysate", "taken"}).
		AddRow("2.5", 3).
		AddRow(nil, 1).
		AddRow("1.5", 2)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY i.dialysate")).
		WithArgs(int64(11), "completed", "2024-05-01", "2024-06-01").
		WillReturnRows(rows)

	taken, err := store.Treatments().TakenByDialysate(context.Background(), 11, month)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2.5": 3, "1.5": 2}, taken)
}

func TestTreatmentListDetails_InProgressMatchesAlias(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta("t.treatment_status IN ($2, $3)")+".*"+regexp.QuoteMeta("LIMIT 10")).
		WithArgs(int64(7), "in-progress", "ongoing").
		WillReturnRows(sqlmock.NewRows([]string{"treatment_id", "patient_id", "treatment_status"}).
			AddRow(1, 7, "ongoing"))

	details, err := store.Treatments().ListDetails(context.Background(), model.TreatmentFilter{
		PatientID: 7,
		Status:    model.TreatmentInProgress,
		Newest:    true,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, model.TreatmentInProgress, details[0].Status)
}

func TestFillSessionActiveByPatient_FiltersOnTreatmentPatient(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.patient_id = $1")+".*"+regexp.QuoteMeta("t.treatment_status IN ($2, $3)")).
		WithArgs(int64(7), "in-progress", "ongoing").
		WillReturnRows(sqlmock.NewRows([]string{"in_id", "treatment_id", "treatment_status"}).
			AddRow(3, 11, "in-progress"))

	active, err := store.FillSessions().ActiveByPatient(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), active.InID)
	assert.Equal(t, int64(11), active.TreatmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE treatment")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(ctx, func(tx repository.Store) error {
		return tx.Treatments().Complete(ctx, 1, 2, model.NewFluidBalance(2000, 2100), time.Now())
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(tx repository.Store) error {
		// nested calls join the outer transaction
		return tx.WithTx(ctx, func(repository.Store) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxUpdateStatus_Processed(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events")).
		WithArgs("processed", nil, nil, sqlmock.AnyArg(), 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &model.OutboxEvent{}
	err := store.Outbox().UpdateStatus(context.Background(), event.ID, model.OutboxStatusProcessed, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\nCREATE TABLE b (id INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, stmts)
}

func TestLoadMigrations(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql"} {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		m := NewMigrator(sqlx.NewDb(db, driver))

		migrations, err := m.LoadMigrations()
		require.NoError(t, err, driver)
		require.NotEmpty(t, migrations, driver)
		assert.Equal(t, 1, migrations[0].Version)
		assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS treatment")
		require.Len(t, migrations, 2, driver)
		assert.Equal(t, 2, migrations[1].Version)
		assert.Contains(t, migrations[1].SQL, "CREATE TABLE IF NOT EXISTS prescription_medicine")
		db.Close()
	}
}
