package services

import (
	"context"
	"errors"
	"testing"

	"github.com/studypath/api/model"
)

func TestUploadWithRawTextEnqueuesJob(t *testing.T) {
	db := openTestDB(t)
	q := &fakeQueue{}
	svc := NewSyllabusService(db, nil, q, nil)

	user := model.User{Name: "U", Email: "u@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}

	syllabus, jobID, err := svc.Upload(context.Background(), UploadRequest{
		UserID:            user.ID,
		Title:             "Operating Systems",
		RawText:           "Processes. Threads. Scheduling.",
		DailyStudyMinutes: 90,
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if syllabus.ID == 0 {
		t.Fatal("syllabus row not created")
	}
	if syllabus.Status != model.SyllabusStatusPending {
		t.Errorf("status = %s, want pending", syllabus.Status)
	}
	if jobID == "" {
		t.Error("no job ID returned")
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(q.enqueued))
	}
	if q.enqueued[0].SyllabusID != syllabus.ID || q.enqueued[0].JobID != jobID {
		t.Errorf("enqueued job %+v does not match syllabus %d / job %s",
			q.enqueued[0], syllabus.ID, jobID)
	}
}

func TestUploadRejectsEmptyInput(t *testing.T) {
	svc := NewSyllabusService(openTestDB(t), nil, &fakeQueue{}, nil)

	_, _, err := svc.Upload(context.Background(), UploadRequest{UserID: 1, Title: "Empty"})
	if err == nil {
		t.Fatal("expected error for upload without text or file")
	}
}

func TestReprocessFailedSyllabus(t *testing.T) {
	db := openTestDB(t)
	q := &fakeQueue{}
	svc := NewSyllabusService(db, nil, q, nil)
	syllabus := seedSyllabus(t, db)

	if err := db.Model(syllabus).Update("status", model.SyllabusStatusError).Error; err != nil {
		t.Fatal(err)
	}

	jobID, err := svc.Reprocess(context.Background(), syllabus.ID)
	if err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	if jobID == "" || len(q.enqueued) != 1 {
		t.Fatalf("job not enqueued: id=%q queue=%v", jobID, q.enqueued)
	}
}

func TestReprocessRejectsBusySyllabus(t *testing.T) {
	db := openTestDB(t)
	svc := NewSyllabusService(db, nil, &fakeQueue{}, nil)
	syllabus := seedSyllabus(t, db)

	if err := db.Model(syllabus).Update("status", model.SyllabusStatusProcessing).Error; err != nil {
		t.Fatal(err)
	}

	_, err := svc.Reprocess(context.Background(), syllabus.ID)
	if !errors.Is(err, ErrSyllabusBusy) {
		t.Fatalf("want ErrSyllabusBusy, got %v", err)
	}
}

func TestReprocessRejectsCompletedSyllabus(t *testing.T) {
	db := openTestDB(t)
	svc := NewSyllabusService(db, nil, &fakeQueue{}, nil)
	syllabus := seedSyllabus(t, db)

	if err := db.Model(syllabus).Update("status", model.SyllabusStatusCompleted).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Reprocess(context.Background(), syllabus.ID); err == nil {
		t.Fatal("expected error for completed syllabus")
	}
}

func TestGetStatusNotFound(t *testing.T) {
	svc := NewSyllabusService(openTestDB(t), nil, &fakeQueue{}, nil)

	_, err := svc.GetStatus(context.Background(), 42)
	if !errors.Is(err, ErrSyllabusNotFound) {
		t.Fatalf("want ErrSyllabusNotFound, got %v", err)
	}
}
